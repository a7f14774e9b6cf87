package gateway

import (
	"context"
	"time"

	"github.com/risa-org/gateway/session"
)

const checkpointTimeout = 5 * time.Second

// saveCheckpoint stores the resumable part of the session, if any.
// Failures are logged, a lost checkpoint only costs a fresh login later.
func (c *Client) saveCheckpoint(url string) {
	if c.store == nil {
		return
	}
	id, seq, ok := c.state.Resumable()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	cp := session.Checkpoint{
		Key:               c.storeKey,
		URL:               url,
		SessionID:         id,
		Sequence:          seq,
		HeartbeatInterval: c.state.HeartbeatInterval(),
		SavedAt:           time.Now(),
	}
	if err := c.store.Save(ctx, cp); err != nil {
		c.log.Warn().Err(err).Str("key", c.storeKey).Msg("checkpoint not saved")
		return
	}
	c.log.Debug().Str("key", c.storeKey).Int64("seq", seq).Msg("checkpoint saved")
}

// dropCheckpoint forgets a session the server has ended.
func (c *Client) dropCheckpoint() {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	if err := c.store.Delete(ctx, c.storeKey); err != nil {
		c.log.Warn().Err(err).Str("key", c.storeKey).Msg("checkpoint not deleted")
		return
	}
	c.log.Debug().Str("key", c.storeKey).Msg("checkpoint deleted")
}
