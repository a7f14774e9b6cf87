package transport

import (
	"context"
	"testing"
)

// TestDisconnectReasonConstants checks all reasons are distinct.
// iota bugs (accidentally reordering constants) would break this.
func TestDisconnectReasonConstants(t *testing.T) {
	reasons := []DisconnectReason{
		ReasonUnknown,
		ReasonNetworkError,
		ReasonTimeout,
		ReasonClosedClean,
	}

	seen := make(map[DisconnectReason]bool)
	for _, r := range reasons {
		if seen[r] {
			t.Errorf("duplicate DisconnectReason value: %d", r)
		}
		seen[r] = true
	}
}

func TestDisconnectReasonString(t *testing.T) {
	if ReasonClosedClean.String() != "closed_clean" {
		t.Errorf("expected closed_clean, got %s", ReasonClosedClean)
	}
	if DisconnectReason(99).String() != "unknown" {
		t.Errorf("expected unknown, got %s", DisconnectReason(99))
	}
}

// TestDisconnectEvent checks the event struct carries reason and error together.
func TestDisconnectEvent(t *testing.T) {
	event := DisconnectEvent{
		Reason: ReasonNetworkError,
		Err:    ErrTransportClosed,
	}

	if event.Reason != ReasonNetworkError {
		t.Errorf("expected ReasonNetworkError, got %d", event.Reason)
	}
	if event.Err != ErrTransportClosed {
		t.Errorf("expected ErrTransportClosed, got %v", event.Err)
	}
}

func TestDialerFunc(t *testing.T) {
	var gotURL string
	d := DialerFunc(func(ctx context.Context, url string) (Adapter, error) {
		gotURL = url
		return nil, ErrTransportClosed
	})

	_, err := d.Dial(context.Background(), "wss://gateway.example.com")
	if err != ErrTransportClosed {
		t.Errorf("expected ErrTransportClosed, got %v", err)
	}
	if gotURL != "wss://gateway.example.com" {
		t.Errorf("expected url to be passed through, got %q", gotURL)
	}
}
