package handshake

import (
	"context"
	"sync"
)

// Latch is a one-shot, waitable boolean signal.
// Set closes the current channel so every waiter wakes at once; Reset arms a
// fresh channel for the next handshake. Anything written before Set is
// visible to a goroutine that observed the latch as set.
type Latch struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Set marks the latch as set and wakes all waiters.
// Safe to call multiple times, later calls are no-ops.
func (l *Latch) Set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		return
	}
	l.set = true
	close(l.ch)
}

// Reset re-arms the latch. Waiters already woken by the previous Set are
// unaffected, new waiters block until the next Set.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		return
	}
	l.set = false
	l.ch = make(chan struct{})
}

// IsSet reports whether the latch is currently set.
func (l *Latch) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// Done returns a channel closed when the latch is set.
// The channel belongs to the current arming, a later Reset does not affect it.
func (l *Latch) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

// Wait blocks until the latch is set or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
