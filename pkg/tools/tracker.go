package tools

import "sync"

// CallState is the lifecycle of one tool call.
type CallState int

const (
	StateReceived CallState = iota
	StateExecuting
	StateResponded
)

// String returns the state name.
func (s CallState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateExecuting:
		return "executing"
	case StateResponded:
		return "responded"
	default:
		return "unknown"
	}
}

// Tracker records the latest state of every unanswered call id. A call is
// forgotten once it has been responded to.
type Tracker struct {
	mu     sync.Mutex
	states map[string]CallState
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]CallState)}
}

func (t *Tracker) set(id string, s CallState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s == StateResponded {
		delete(t.states, id)
		return
	}
	t.states[id] = s
}

// State returns the state of a call id. Answered and unknown ids report
// false.
func (t *Tracker) State(id string) (CallState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

// Pending returns the number of calls not yet responded.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}
