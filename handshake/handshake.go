package handshake

import (
	"context"
	"errors"
	"time"
)

// Named errors let callers check the exact cause with errors.Is().
var (
	// ErrNoServerResponse means the server never answered the login within
	// the handshake timeout. Retrying Login or reconnecting can recover.
	ErrNoServerResponse = errors.New("no reply from gateway server")

	// ErrUnknownConnection means the handshake wait was cancelled without a
	// recorded disconnect reason.
	ErrUnknownConnection = errors.New("unknown gateway connection error")
)

// Gate is the two-phase readiness gate of a login.
//
// Authenticated is set by the dispatcher as soon as the server's READY has
// been recorded into session state. Ready is set after READY has been
// delivered to event subscribers. Login waits on both, so callers never see
// "connected" before the session identifier needed for resume exists, and
// never before subscribers have seen READY.
type Gate struct {
	Authenticated *Latch
	Ready         *Latch
}

// NewGate creates a gate with both latches unset.
// The gate lives as long as the client and is reset for every attempt.
func NewGate() *Gate {
	return &Gate{
		Authenticated: NewLatch(),
		Ready:         NewLatch(),
	}
}

// Reset re-arms both latches. Called at the start of every connection
// attempt and every Login.
func (g *Gate) Reset() {
	g.Authenticated.Reset()
	g.Ready.Reset()
}

// AwaitAuthenticated waits for the Authenticated latch.
//
// Returns nil once it is set, ErrNoServerResponse if timeout elapses first
// (timeout <= 0 waits without a bound), or ctx's error if ctx is done first.
// Mapping a cancellation to a disconnect reason is up to the caller, which
// knows why the context was cancelled.
func (g *Gate) AwaitAuthenticated(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-g.Authenticated.Done():
		return nil
	case <-expired:
		// a READY landing right at the deadline still counts
		if g.Authenticated.IsSet() {
			return nil
		}
		return ErrNoServerResponse
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitReady waits for the Ready latch with no timeout.
// Returns false if ctx ends first. The caller abandoned the connection,
// which is not a failure of the handshake itself.
func (g *Gate) AwaitReady(ctx context.Context) bool {
	return g.Ready.Wait(ctx) == nil
}
