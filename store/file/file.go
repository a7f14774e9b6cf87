package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/risa-org/gateway/session"
)

// Store is a file-backed implementation of session.CheckpointStore.
// Checkpoints are persisted to a JSON file and survive process restarts,
// which is what lets a restarted client resume instead of logging in again.
// Not suitable for multiple processes sharing one file, use Redis for that.
type Store struct {
	mu          sync.RWMutex
	path        string
	checkpoints map[string]session.Checkpoint
}

// New creates a file-backed store at the given path.
// If the file exists, checkpoints are loaded from it on startup.
// If it doesn't exist, it will be created on first write.
func New(path string) (*Store, error) {
	s := &Store{
		path:        path,
		checkpoints: make(map[string]session.Checkpoint),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load checkpoints from %s: %w", path, err)
	}

	return s, nil
}

// Save stores cp in memory and flushes to disk.
func (s *Store) Save(ctx context.Context, cp session.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.Key] = cp
	if err := s.flush(); err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	return nil
}

// Load retrieves the checkpoint for key from memory.
func (s *Store) Load(ctx context.Context, key string) (session.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[key]
	return cp, ok, nil
}

// Delete removes a checkpoint from memory and flushes to disk.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, key)
	return s.flush()
}

// Count returns the number of checkpoints currently stored.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints)
}

// load reads checkpoints from the JSON file into memory.
// Called once at startup. If the file doesn't exist, returns nil and the store starts empty.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil // fresh start, no file yet
	}
	if err != nil {
		return err
	}

	var records []session.Checkpoint
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	for _, r := range records {
		s.checkpoints[r.Key] = r
	}
	return nil
}

// flush writes the current in-memory state to the JSON file.
// Must be called with the write lock held.
func (s *Store) flush() error {
	records := make([]session.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		records = append(records, cp)
	}
	// stable output keeps diffs of the file readable
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	// write to a temp file then rename, atomic on most systems
	// prevents corrupt file if process crashes mid-write
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
