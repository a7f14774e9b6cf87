// Package protocol defines the gateway wire messages: the inbound envelope,
// the payloads the client interprets, and the outbound commands.
//
// Every message is a JSON object:
//
//	{"op": <int>, "t": <string, optional>, "s": <int, optional>, "d": <any>}
//
// The client only looks inside "d" for READY and Redirect, everything else is
// forwarded to subscribers untouched.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when an inbound frame cannot be decoded.
// The frame is dropped, the session continues.
var ErrMalformedFrame = errors.New("malformed gateway frame")

// Opcode classifies a gateway message.
type Opcode int

const (
	OpDispatch         Opcode = 0 // in: event with a type tag
	OpHeartbeat        Opcode = 1 // out: keepalive
	OpIdentify         Opcode = 2 // out: login
	OpStatusUpdate     Opcode = 3 // out: presence
	OpVoiceStateUpdate Opcode = 4 // out: join/leave voice
	OpResume           Opcode = 6 // out: resume a previous session
	OpRedirect         Opcode = 7 // in: reconnect to another host
)

func (o Opcode) String() string {
	switch o {
	case OpDispatch:
		return "dispatch"
	case OpHeartbeat:
		return "heartbeat"
	case OpIdentify:
		return "identify"
	case OpStatusUpdate:
		return "status_update"
	case OpVoiceStateUpdate:
		return "voice_state_update"
	case OpResume:
		return "resume"
	case OpRedirect:
		return "redirect"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// EventReady is the type tag of the dispatch that completes a login.
const EventReady = "READY"

// Inbound is one decoded frame. Transient, never persisted.
type Inbound struct {
	Op      Opcode          `json:"op"`
	Type    string          `json:"t,omitempty"`
	Seq     *int64          `json:"s,omitempty"`
	Payload json.RawMessage `json:"d,omitempty"`
}

// Decode parses a text frame into an Inbound message.
// Any failure is reported as ErrMalformedFrame.
func Decode(frame []byte) (Inbound, error) {
	var raw struct {
		Op      *Opcode         `json:"op"`
		Type    *string         `json:"t"`
		Seq     *int64          `json:"s"`
		Payload json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if raw.Op == nil {
		return Inbound{}, fmt.Errorf("%w: missing op", ErrMalformedFrame)
	}
	if raw.Seq != nil && *raw.Seq < 0 {
		return Inbound{}, fmt.Errorf("%w: negative sequence %d", ErrMalformedFrame, *raw.Seq)
	}

	msg := Inbound{
		Op:      *raw.Op,
		Seq:     raw.Seq,
		Payload: raw.Payload,
	}
	if raw.Type != nil {
		msg.Type = *raw.Type
	}
	return msg, nil
}

// Ready is the payload of the READY dispatch.
type Ready struct {
	SessionID string `json:"session_id"`
	// HeartbeatInterval is in milliseconds.
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// DecodeReady extracts the READY payload. A READY without a session
// identifier cannot be resumed and is treated as malformed.
func DecodeReady(payload json.RawMessage) (Ready, error) {
	var r Ready
	if err := json.Unmarshal(payload, &r); err != nil {
		return Ready{}, fmt.Errorf("%w: ready: %v", ErrMalformedFrame, err)
	}
	if r.SessionID == "" {
		return Ready{}, fmt.Errorf("%w: ready: missing session_id", ErrMalformedFrame)
	}
	return r, nil
}

// Redirect is the payload of op 7.
type Redirect struct {
	URL string `json:"url"`
}

// DecodeRedirect extracts the redirect target.
func DecodeRedirect(payload json.RawMessage) (Redirect, error) {
	var r Redirect
	if err := json.Unmarshal(payload, &r); err != nil {
		return Redirect{}, fmt.Errorf("%w: redirect: %v", ErrMalformedFrame, err)
	}
	if r.URL == "" {
		return Redirect{}, fmt.Errorf("%w: redirect: missing url", ErrMalformedFrame)
	}
	return r, nil
}
