package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/risa-org/gateway/transport"
)

const waitTimeout = 2 * time.Second

// fakeAdapter is an in-memory transport. Frames pushed by the test come
// out of Receive, frames the client sends land in sent.
type fakeAdapter struct {
	mu         sync.Mutex
	ended      bool
	incoming   chan []byte
	disconnect chan transport.DisconnectEvent
	sent       chan []byte
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		incoming:   make(chan []byte, 64),
		disconnect: make(chan transport.DisconnectEvent, 1),
		sent:       make(chan []byte, 64),
	}
}

func (f *fakeAdapter) Send(ctx context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return transport.ErrTransportClosed
	}
	select {
	case f.sent <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAdapter) Receive() <-chan []byte {
	return f.incoming
}

func (f *fakeAdapter) Disconnected() <-chan transport.DisconnectEvent {
	return f.disconnect
}

func (f *fakeAdapter) Close() error {
	f.end(transport.DisconnectEvent{Reason: transport.ReasonClosedClean})
	return nil
}

// push delivers a frame from the "server". Dropped once the adapter ended.
func (f *fakeAdapter) push(frame string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.incoming <- []byte(frame)
}

// end closes the adapter the way real adapters do: event first, then Receive.
func (f *fakeAdapter) end(event transport.DisconnectEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return
	}
	f.ended = true
	f.disconnect <- event
	close(f.incoming)
}

func (f *fakeAdapter) isEnded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

// nextSent returns the next frame the client wrote, decoded.
func (f *fakeAdapter) nextSent(t *testing.T) sentFrame {
	t.Helper()
	select {
	case raw := <-f.sent:
		var frame sentFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("client sent invalid JSON %q: %v", raw, err)
		}
		return frame
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the client to send a frame")
		return sentFrame{}
	}
}

type sentFrame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// fakeDialer hands out a new fakeAdapter for every dial.
type fakeDialer struct {
	mu       sync.Mutex
	urls     []string
	adapters chan *fakeAdapter
	err      error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{adapters: make(chan *fakeAdapter, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	a := newFakeAdapter()
	d.adapters <- a
	return a, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeAdapter {
	t.Helper()
	select {
	case a := <-d.adapters:
		return a
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// debugSink collects diagnostic messages.
type debugSink struct {
	mu    sync.Mutex
	kinds []DebugKind
	msgs  []string
}

func (s *debugSink) record(kind DebugKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.msgs = append(s.msgs, msg)
}

func (s *debugSink) has(kind DebugKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HandshakeTimeout = waitTimeout
	cfg.SendRate = 0
	cfg.Debug = true
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	return cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
