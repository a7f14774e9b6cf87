package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeReadyFrame(t *testing.T) {
	frame := []byte(`{"op":0,"t":"READY","s":1,"d":{"session_id":"abc","heartbeat_interval":5000}}`)

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msg.Op != OpDispatch {
		t.Errorf("expected op dispatch, got %v", msg.Op)
	}
	if msg.Type != EventReady {
		t.Errorf("expected type READY, got %q", msg.Type)
	}
	if msg.Seq == nil || *msg.Seq != 1 {
		t.Fatalf("expected seq 1, got %v", msg.Seq)
	}

	ready, err := DecodeReady(msg.Payload)
	if err != nil {
		t.Fatalf("expected ready payload, got: %v", err)
	}
	if ready.SessionID != "abc" || ready.HeartbeatInterval != 5000 {
		t.Errorf("unexpected ready payload: %+v", ready)
	}
}

func TestDecodeWithoutOptionalFields(t *testing.T) {
	msg, err := Decode([]byte(`{"op":7,"d":{"url":"gateway2.example.com"}}`))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msg.Seq != nil {
		t.Errorf("expected no sequence, got %d", *msg.Seq)
	}
	if msg.Type != "" {
		t.Errorf("expected no type, got %q", msg.Type)
	}

	redirect, err := DecodeRedirect(msg.Payload)
	if err != nil {
		t.Fatalf("expected redirect payload, got: %v", err)
	}
	if redirect.URL != "gateway2.example.com" {
		t.Errorf("expected gateway2.example.com, got %q", redirect.URL)
	}
}

func TestDecodeNullSequenceIsAbsent(t *testing.T) {
	msg, err := Decode([]byte(`{"op":0,"t":"TYPING_START","s":null,"d":{}}`))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msg.Seq != nil {
		t.Errorf("expected null sequence to decode as absent")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":   `{op:`,
		"missing op": `{"t":"READY"}`,
		"wrong type": `{"op":"zero"}`,
		"empty":      ``,
		"negative s": `{"op":0,"t":"X","s":-5,"d":{}}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestDecodeReadyRequiresSessionID(t *testing.T) {
	_, err := DecodeReady(json.RawMessage(`{"heartbeat_interval":5000}`))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeRedirectRequiresURL(t *testing.T) {
	_, err := DecodeRedirect(json.RawMessage(`{}`))
	if !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame, got %v", err)
	}
}

// decodeCommand parses an encoded command back into a generic map so tests
// can assert on the exact wire shape.
func decodeCommand(t *testing.T, cmd Command) (int, map[string]any) {
	t.Helper()
	data, err := Encode(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var out struct {
		Op int            `json:"op"`
		D  map[string]any `json:"d"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return out.Op, out.D
}

func TestLoginShape(t *testing.T) {
	op, d := decodeCommand(t, Login("secret"))

	if op != int(OpIdentify) {
		t.Errorf("expected op %d, got %d", OpIdentify, op)
	}
	if d["token"] != "secret" {
		t.Errorf("expected token secret, got %v", d["token"])
	}
	props, ok := d["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties object, got %T", d["properties"])
	}
	if props["$device"] != DeviceName {
		t.Errorf("expected $device %q, got %v", DeviceName, props["$device"])
	}
	for _, key := range []string{"$os", "$browser", "$referrer", "$referring_domain"} {
		if v, ok := props[key]; !ok || v != "" {
			t.Errorf("expected empty %s property, got %v (present=%v)", key, v, ok)
		}
	}
}

func TestResumeShape(t *testing.T) {
	op, d := decodeCommand(t, Resume("abc", 42))

	if op != int(OpResume) {
		t.Errorf("expected op %d, got %d", OpResume, op)
	}
	if d["session_id"] != "abc" {
		t.Errorf("expected session_id abc, got %v", d["session_id"])
	}
	if d["seq"] != float64(42) {
		t.Errorf("expected seq 42, got %v", d["seq"])
	}
}

func TestKeepAliveCarriesTimestamp(t *testing.T) {
	now := time.UnixMilli(1760000000000)
	data, err := Encode(KeepAlive(now))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data) != `{"op":1,"d":1760000000000}` {
		t.Errorf("unexpected keepalive frame: %s", data)
	}
}

func TestStatusUpdateShape(t *testing.T) {
	op, d := decodeCommand(t, StatusUpdate())

	if op != int(OpStatusUpdate) {
		t.Errorf("expected op %d, got %d", OpStatusUpdate, op)
	}
	if v, ok := d["idle_since"]; !ok || v != nil {
		t.Errorf("expected idle_since null, got %v", v)
	}
	if v, ok := d["game_id"]; !ok || v != nil {
		t.Errorf("expected game_id null, got %v", v)
	}
}

func TestJoinVoiceShape(t *testing.T) {
	op, d := decodeCommand(t, JoinVoice("server-1", "channel-9"))

	if op != int(OpVoiceStateUpdate) {
		t.Errorf("expected op %d, got %d", OpVoiceStateUpdate, op)
	}
	if d["guild_id"] != "server-1" || d["channel_id"] != "channel-9" {
		t.Errorf("unexpected voice payload: %v", d)
	}
}

// TestLeaveVoiceIsEmptyJoin checks leave uses the join shape with empty targets
func TestLeaveVoiceIsEmptyJoin(t *testing.T) {
	leave, err := Encode(LeaveVoice())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	emptyJoin, err := Encode(JoinVoice("", ""))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(leave) != string(emptyJoin) {
		t.Errorf("expected leave %s to equal empty join %s", leave, emptyJoin)
	}
}

func TestOpcodeString(t *testing.T) {
	if OpRedirect.String() != "redirect" {
		t.Errorf("expected redirect, got %s", OpRedirect)
	}
	if Opcode(99).String() != "op(99)" {
		t.Errorf("expected op(99), got %s", Opcode(99))
	}
}
