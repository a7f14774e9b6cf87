package gateway

import (
	"time"

	"github.com/risa-org/gateway/protocol"
	"github.com/risa-org/gateway/session"
)

// Dispatch applies one inbound frame as if it came from the current
// connection. Malformed frames change nothing and return an error
// wrapping ErrMalformedFrame.
func (c *Client) Dispatch(frame []byte) error {
	return c.dispatch(c.currentConn(), frame)
}

// dispatch runs on the read loop of conn. conn may be nil when frames are
// fed directly through Dispatch without a connection.
func (c *Client) dispatch(conn *connection, frame []byte) error {
	msg, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	// payloads the client acts on are checked before any state changes
	var ready protocol.Ready
	var redirect protocol.Redirect
	switch {
	case msg.Op == protocol.OpDispatch && msg.Type == protocol.EventReady:
		if ready, err = protocol.DecodeReady(msg.Payload); err != nil {
			return err
		}
	case msg.Op == protocol.OpRedirect:
		if redirect, err = protocol.DecodeRedirect(msg.Payload); err != nil {
			return err
		}
	}

	c.metrics.FrameDispatched(msg.Op.String())

	// last writer wins, regressions are reported but not rejected
	if msg.Seq != nil {
		seq := *msg.Seq
		if prev := c.state.ObserveSequence(seq); seq < prev {
			c.metrics.SequenceRegression()
			c.debugf(DebugSequence, "sequence went from %d back to %d", prev, seq)
		}
	}

	switch msg.Op {
	case protocol.OpDispatch:
		c.dispatchEvent(conn, msg, ready)
	case protocol.OpRedirect:
		c.dispatchRedirect(conn, redirect)
	default:
		c.debugf(DebugUnknownOpcode, "unknown opcode: %d", int(msg.Op))
	}
	return nil
}

// dispatchEvent handles op 0. For READY the session is recorded and
// Authenticated set before subscribers run, and Ready is set after.
func (c *Client) dispatchEvent(conn *connection, msg protocol.Inbound, r protocol.Ready) {
	isReady := msg.Type == protocol.EventReady
	if isReady {
		interval := time.Duration(r.HeartbeatInterval) * time.Millisecond
		c.state.SetSession(r.SessionID, interval)

		if conn != nil {
			if err := conn.sender.Queue(protocol.StatusUpdate()); err != nil {
				c.log.Warn().Err(err).Msg("status update dropped")
			}
			conn.armHeartbeat(interval)
		}
		c.gate.Authenticated.Set()
	}

	c.markResumed()
	c.emit(msg.Type, msg.Payload)

	if isReady {
		c.gate.Ready.Set()
	}
}

// markResumed completes a resume: the first event after it proves the
// server accepted the session.
func (c *Client) markResumed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifecycle.State() == session.StateResuming {
		c.lifecycle.Transition(session.StateActive)
	}
}

func (c *Client) dispatchRedirect(conn *connection, r protocol.Redirect) {
	c.metrics.Redirect()
	c.debugf(DebugRedirect, "redirected to %s", r.URL)
	c.state.SetRedirect(r.URL)

	if conn != nil {
		conn.disconnect(ErrServerRedirecting, true)
	}
}
