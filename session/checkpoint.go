package session

import (
	"context"
	"time"
)

// Checkpoint is the persisted form of a resumable session.
// It carries enough to reopen the gateway and send Resume after the process
// that owned the session is gone.
type Checkpoint struct {
	Key               string        `json:"key"`
	URL               string        `json:"url"`
	SessionID         string        `json:"session_id"`
	Sequence          int64         `json:"seq"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	SavedAt           time.Time     `json:"saved_at"`
}

// Valid reports whether the checkpoint can drive a resume.
func (c Checkpoint) Valid() bool {
	return c.SessionID != "" && c.URL != ""
}

// CheckpointStore persists checkpoints by key.
// We define it here so the client doesn't need to know how checkpoints are
// stored.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, key string) (Checkpoint, bool, error)
	Delete(ctx context.Context, key string) error
}
