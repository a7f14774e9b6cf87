package session

import "fmt"

// ConnState represents where a gateway client currently is in its lifecycle.
// We use iota to auto-assign integer values to each constant.
type ConnState int

const (
	StateDisconnected ConnState = iota // 0 - no transport, initial and terminal-until-reconnect
	StateConnecting                    // 1 - transport open, login not yet completed
	StateActive                        // 2 - READY handled, session identifier recorded
	StateResuming                      // 3 - transport reopened after redirect/drop, resume sent
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateResuming:
		return "resuming"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// allowed lists the legal transitions out of each state.
// Disconnected is reachable from everywhere, a session can always drop.
// Every reconnect goes back through Disconnected first.
var allowed = map[ConnState][]ConnState{
	StateDisconnected: {StateConnecting, StateResuming},
	StateConnecting:   {StateActive, StateDisconnected},
	StateActive:       {StateDisconnected},
	StateResuming:     {StateActive, StateDisconnected},
}

// Lifecycle tracks the connection state of one client.
// It is not safe for concurrent use on its own, the owner guards it.
type Lifecycle struct {
	state ConnState
}

// State returns the current state.
func (l *Lifecycle) State() ConnState {
	return l.state
}

// Transition moves the lifecycle to a new state.
// Not all transitions are valid, this enforces the rules.
// Transitioning to the current state is a no-op and reports true.
func (l *Lifecycle) Transition(next ConnState) bool {
	if l.state == next {
		return true
	}
	if !isValidTransition(l.state, next) {
		return false
	}
	l.state = next
	return true
}

func isValidTransition(from, to ConnState) bool {
	for _, valid := range allowed[from] {
		if to == valid {
			return true
		}
	}
	return false
}
