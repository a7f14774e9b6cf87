package memory

import (
	"context"
	"sync"

	"github.com/risa-org/gateway/session"
)

// Store is a thread-safe in-memory implementation of session.CheckpointStore.
// Suitable for a single process and testing.
// Checkpoints are lost on restart, use the file or Redis store to survive one.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]session.Checkpoint
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		checkpoints: make(map[string]session.Checkpoint),
	}
}

// Save stores cp under cp.Key, replacing any previous checkpoint.
func (s *Store) Save(ctx context.Context, cp session.Checkpoint) error {
	s.mu.Lock()
	s.checkpoints[cp.Key] = cp
	s.mu.Unlock()
	return nil
}

// Load retrieves the checkpoint for key.
// Returns false if nothing was saved under it.
func (s *Store) Load(ctx context.Context, key string) (session.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[key]
	return cp, ok, nil
}

// Delete removes the checkpoint for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.checkpoints, key)
	s.mu.Unlock()
	return nil
}

// Count returns the number of checkpoints currently in the store.
// Useful for observability and testing.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints)
}
