package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is one outbound message. Builders below are stateless,
// the Payload is whatever the opcode expects under "d".
type Command struct {
	Op      Opcode `json:"op"`
	Payload any    `json:"d"`
}

// Encode serializes a command into a text frame.
func Encode(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Op, err)
	}
	return data, nil
}

// DeviceName is the client identification reported on login.
const DeviceName = "gateway"

// LoginPayload is the body of an identify command.
type LoginPayload struct {
	Token      string            `json:"token"`
	Properties map[string]string `json:"properties"`
}

// Login builds the identify command carrying the credential and the fixed
// client identification properties.
func Login(token string) Command {
	return Command{
		Op: OpIdentify,
		Payload: LoginPayload{
			Token: token,
			Properties: map[string]string{
				"$os":               "",
				"$browser":          "",
				"$device":           DeviceName,
				"$referrer":         "",
				"$referring_domain": "",
			},
		},
	}
}

// ResumePayload is the body of a resume command.
type ResumePayload struct {
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// Resume builds the command that picks a session back up after reconnecting.
func Resume(sessionID string, seq int64) Command {
	return Command{
		Op:      OpResume,
		Payload: ResumePayload{SessionID: sessionID, Sequence: seq},
	}
}

// KeepAlive builds a heartbeat carrying the send time in unix milliseconds.
func KeepAlive(now time.Time) Command {
	return Command{Op: OpHeartbeat, Payload: now.UnixMilli()}
}

// StatusPayload is the body of a status update. Both fields are sent as
// null right after authentication: online, not idle, not playing.
type StatusPayload struct {
	IdleSince *int64 `json:"idle_since"`
	GameID    *int64 `json:"game_id"`
}

// StatusUpdate builds the presence command sent once after READY.
func StatusUpdate() Command {
	return Command{Op: OpStatusUpdate, Payload: StatusPayload{}}
}

// VoicePayload is the body of a voice state update.
// Empty ServerID and ChannelID mean "leave".
type VoicePayload struct {
	ServerID  string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	SelfMute  bool   `json:"self_mute"`
	SelfDeaf  bool   `json:"self_deaf"`
}

// JoinVoice builds the command to join a voice channel.
func JoinVoice(serverID, channelID string) Command {
	return Command{
		Op:      OpVoiceStateUpdate,
		Payload: VoicePayload{ServerID: serverID, ChannelID: channelID},
	}
}

// LeaveVoice is JoinVoice with empty target fields.
func LeaveVoice() Command {
	return JoinVoice("", "")
}
