package capture

import "sync/atomic"

// Gate decides whether captured frames may leave the process.
type Gate interface {
	// Open reports whether frames should be forwarded.
	Open() bool
	// Muted reports whether the user muted the microphone.
	Muted() bool
}

// Switch is a Gate driven by two flags. Frames pass only while connected
// and not muted.
type Switch struct {
	connected atomic.Bool
	muted     atomic.Bool
}

// SetConnected records whether the outbound stream is open.
func (s *Switch) SetConnected(v bool) { s.connected.Store(v) }

// SetMuted records the user's mute choice.
func (s *Switch) SetMuted(v bool) { s.muted.Store(v) }

// Open implements Gate.
func (s *Switch) Open() bool { return s.connected.Load() && !s.muted.Load() }

// Muted implements Gate.
func (s *Switch) Muted() bool { return s.muted.Load() }

// Connected reports the connected flag.
func (s *Switch) Connected() bool { return s.connected.Load() }
