package session

import "fmt"

// State is the lifecycle state of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Erroring
	Disconnecting
)

var stateNames = []string{"disconnected", "connecting", "connected", "erroring", "disconnecting"}

// String returns the lowercase state name used in events and metrics.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", text)
}

// Status is the state as seen by the UI. Muted is only meaningful while
// Connected.
type Status struct {
	State State `json:"state"`
	Muted bool  `json:"muted"`
}
