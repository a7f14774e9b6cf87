package transport

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned when you try to send on a closed transport.
// Check for it with errors.Is.
var ErrTransportClosed = errors.New("transport closed")

// DisconnectReason tells the gateway client why a transport closed.
// Clean closes end the session, network errors may be resumed.
type DisconnectReason int

const (
	ReasonUnknown      DisconnectReason = iota // catch-all, should be rare
	ReasonNetworkError                         // underlying connection failed
	ReasonTimeout                              // no activity within deadline
	ReasonClosedClean                          // graceful shutdown by either side
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonNetworkError:
		return "network_error"
	case ReasonTimeout:
		return "timeout"
	case ReasonClosedClean:
		return "closed_clean"
	default:
		return "unknown"
	}
}

// DisconnectEvent is sent on the channel returned by Disconnected().
// It bundles the reason with an optional error for debugging.
type DisconnectEvent struct {
	Reason DisconnectReason
	Err    error // nil on clean close, populated on errors
}

// Adapter is the contract every transport must satisfy.
// The gateway client only ever talks to this interface,
// it never imports tcp, websocket, or anything concrete.
//
// Frames are opaque text: one encoded gateway message per frame.
type Adapter interface {
	// Send delivers one frame to the remote side.
	// Returns ErrTransportClosed if the transport is no longer active.
	// Delivery is attempted once, retrying is not the transport's job.
	Send(ctx context.Context, frame []byte) error

	// Receive returns a channel that emits incoming frames in arrival order.
	// The channel is closed when the transport closes.
	Receive() <-chan []byte

	// Disconnected returns a channel that emits exactly one DisconnectEvent
	// when the transport closes, for any reason.
	Disconnected() <-chan DisconnectEvent

	// Close shuts down the transport cleanly.
	// Safe to call multiple times, later calls are no-ops.
	Close() error
}

// Dialer opens an Adapter to a gateway URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Adapter, error)
}

// DialerFunc adapts a plain function to a Dialer.
type DialerFunc func(ctx context.Context, url string) (Adapter, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Adapter, error) {
	return f(ctx, url)
}
