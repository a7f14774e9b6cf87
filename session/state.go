package session

import (
	"sync"
	"time"
)

// State is the resumable part of a gateway session.
// It holds everything a reconnect needs to pick the session back up:
// the last sequence number seen, the session identifier issued by READY,
// and a pending redirect target if the server asked us to move.
//
// One State belongs to exactly one client. The client's dispatch path is
// the single writer, everything else only reads.
type State struct {
	mu        sync.RWMutex
	lastSeq   int64         // last sequence number seen on the wire, 0 means none yet
	sessionID string        // set by READY, required for resume
	redirect  string        // pending redirect host, consumed by the next connect
	heartbeat time.Duration // server-provided keepalive interval
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Reset clears everything. Called only when a brand-new connection attempt
// begins, never on redirect or resume.
func (s *State) Reset() {
	s.mu.Lock()
	s.lastSeq = 0
	s.sessionID = ""
	s.redirect = ""
	s.heartbeat = 0
	s.mu.Unlock()
}

// ObserveSequence records seq as the latest sequence number.
// The server is trusted to send monotonic numbers, so the value is stored
// unconditionally (last writer wins). The previous value is returned so the
// caller can report regressions.
func (s *State) ObserveSequence(seq int64) (previous int64) {
	s.mu.Lock()
	previous = s.lastSeq
	s.lastSeq = seq
	s.mu.Unlock()
	return previous
}

// Sequence returns the last observed sequence number.
func (s *State) Sequence() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// SetSession stores the session identifier and keepalive interval from READY.
func (s *State) SetSession(id string, heartbeat time.Duration) {
	s.mu.Lock()
	s.sessionID = id
	s.heartbeat = heartbeat
	s.mu.Unlock()
}

// SessionID returns the current session identifier, empty before READY.
func (s *State) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// HeartbeatInterval returns the keepalive interval announced by the server.
func (s *State) HeartbeatInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heartbeat
}

// SetRedirect records the host the next connection attempt should target.
func (s *State) SetRedirect(host string) {
	s.mu.Lock()
	s.redirect = host
	s.mu.Unlock()
}

// PendingRedirect returns the recorded redirect host without consuming it.
func (s *State) PendingRedirect() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redirect, s.redirect != ""
}

// TakeRedirect returns the pending redirect host and clears it.
// A redirect target is consumed by exactly one connection attempt.
func (s *State) TakeRedirect() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := s.redirect
	s.redirect = ""
	return host, host != ""
}

// Restore loads a session identifier and sequence from a checkpoint.
// Only used when resuming a session saved by a previous process.
func (s *State) Restore(cp Checkpoint) {
	s.mu.Lock()
	s.sessionID = cp.SessionID
	s.lastSeq = cp.Sequence
	s.heartbeat = cp.HeartbeatInterval
	s.redirect = ""
	s.mu.Unlock()
}

// Resumable reports the session identifier and sequence a Resume command
// should carry. ok is false when no session has been established.
func (s *State) Resumable() (sessionID string, seq int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID, s.lastSeq, s.sessionID != ""
}
