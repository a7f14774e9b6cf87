package gateway

import "github.com/risa-org/gateway/protocol"

// JoinVoice asks the gateway to move the client into a voice channel.
func (c *Client) JoinVoice(serverID, channelID string) error {
	return c.queue(protocol.JoinVoice(serverID, channelID))
}

// LeaveVoice leaves any voice channel. Harmless when not in one.
func (c *Client) LeaveVoice() error {
	return c.queue(protocol.LeaveVoice())
}

// UpdateStatus re-announces the client as online and idle-free.
func (c *Client) UpdateStatus() error {
	return c.queue(protocol.StatusUpdate())
}

func (c *Client) queue(cmd protocol.Command) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.sender.Queue(cmd)
}
