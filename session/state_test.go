package session

import (
	"sync"
	"testing"
	"time"
)

func TestNewStateIsEmpty(t *testing.T) {
	s := NewState()

	if s.Sequence() != 0 {
		t.Errorf("expected sequence 0, got %d", s.Sequence())
	}
	if s.SessionID() != "" {
		t.Errorf("expected empty session ID, got %q", s.SessionID())
	}
	if _, ok := s.PendingRedirect(); ok {
		t.Error("expected no pending redirect")
	}
	if _, _, ok := s.Resumable(); ok {
		t.Error("fresh state must not be resumable")
	}
}

// TestObserveSequenceLastWriterWins checks there is no ordering check.
// The most recent frame's sequence always wins.
func TestObserveSequenceLastWriterWins(t *testing.T) {
	s := NewState()

	for _, seq := range []int64{1, 2, 5, 3} {
		s.ObserveSequence(seq)
	}

	if s.Sequence() != 3 {
		t.Errorf("expected last observed sequence 3, got %d", s.Sequence())
	}
}

func TestObserveSequenceReturnsPrevious(t *testing.T) {
	s := NewState()

	if prev := s.ObserveSequence(7); prev != 0 {
		t.Errorf("expected previous 0, got %d", prev)
	}
	if prev := s.ObserveSequence(4); prev != 7 {
		t.Errorf("expected previous 7, got %d", prev)
	}
}

func TestSetSession(t *testing.T) {
	s := NewState()
	s.SetSession("abc", 5*time.Second)

	if s.SessionID() != "abc" {
		t.Errorf("expected session abc, got %q", s.SessionID())
	}
	if s.HeartbeatInterval() != 5*time.Second {
		t.Errorf("expected heartbeat 5s, got %v", s.HeartbeatInterval())
	}
}

// TestTakeRedirectConsumes checks a redirect target is used exactly once
func TestTakeRedirectConsumes(t *testing.T) {
	s := NewState()
	s.SetRedirect("gateway2.example.com")

	host, ok := s.TakeRedirect()
	if !ok || host != "gateway2.example.com" {
		t.Fatalf("expected gateway2.example.com, got %q (ok=%v)", host, ok)
	}

	if _, ok := s.TakeRedirect(); ok {
		t.Error("redirect should be cleared after being taken")
	}
}

// TestResetClearsEverything covers a brand-new connection attempt
func TestResetClearsEverything(t *testing.T) {
	s := NewState()
	s.ObserveSequence(9)
	s.SetSession("abc", time.Second)
	s.SetRedirect("elsewhere")

	s.Reset()

	if s.Sequence() != 0 || s.SessionID() != "" || s.HeartbeatInterval() != 0 {
		t.Errorf("expected cleared state, got seq=%d session=%q", s.Sequence(), s.SessionID())
	}
	if _, ok := s.PendingRedirect(); ok {
		t.Error("expected redirect cleared by reset")
	}
}

func TestResumable(t *testing.T) {
	s := NewState()
	s.SetSession("abc", time.Second)
	s.ObserveSequence(12)

	id, seq, ok := s.Resumable()
	if !ok {
		t.Fatal("expected state to be resumable")
	}
	if id != "abc" || seq != 12 {
		t.Errorf("expected abc/12, got %s/%d", id, seq)
	}
}

func TestRestoreFromCheckpoint(t *testing.T) {
	s := NewState()
	s.SetRedirect("stale")

	s.Restore(Checkpoint{SessionID: "saved", Sequence: 40, HeartbeatInterval: 3 * time.Second})

	id, seq, ok := s.Resumable()
	if !ok || id != "saved" || seq != 40 {
		t.Errorf("expected saved/40, got %s/%d (ok=%v)", id, seq, ok)
	}
	if _, ok := s.PendingRedirect(); ok {
		t.Error("restore should drop any pending redirect")
	}
}

func TestCheckpointValid(t *testing.T) {
	if (Checkpoint{URL: "wss://gw"}).Valid() {
		t.Error("checkpoint without session ID should be invalid")
	}
	if (Checkpoint{SessionID: "abc"}).Valid() {
		t.Error("checkpoint without URL should be invalid")
	}
	if !(Checkpoint{SessionID: "abc", URL: "wss://gw"}).Valid() {
		t.Error("expected checkpoint to be valid")
	}
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 1000; i++ {
			s.ObserveSequence(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.Sequence()
			_, _, _ = s.Resumable()
		}
	}()
	wg.Wait()

	if s.Sequence() != 1000 {
		t.Errorf("expected 1000, got %d", s.Sequence())
	}
}
