package session

import (
	"sync"

	"github.com/teslashibe/go-concierge/pkg/transcript"
)

// Observer receives session events. Callbacks run on session goroutines
// and must not block or call back into Connect or Disconnect.
type Observer interface {
	OnStateChange(Status)
	OnVolume(level float64)
	OnBookingsChanged()
	OnMessage(transcript.Update)
	OnError(message string)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	StateChange     func(Status)
	Volume          func(float64)
	BookingsChanged func()
	Message         func(transcript.Update)
	Error           func(string)
}

func (f ObserverFuncs) OnStateChange(s Status) {
	if f.StateChange != nil {
		f.StateChange(s)
	}
}

func (f ObserverFuncs) OnVolume(level float64) {
	if f.Volume != nil {
		f.Volume(level)
	}
}

func (f ObserverFuncs) OnBookingsChanged() {
	if f.BookingsChanged != nil {
		f.BookingsChanged()
	}
}

func (f ObserverFuncs) OnMessage(u transcript.Update) {
	if f.Message != nil {
		f.Message(u)
	}
}

func (f ObserverFuncs) OnError(msg string) {
	if f.Error != nil {
		f.Error(msg)
	}
}

// Event types carried by ChannelObserver.
const (
	EventState           = "state"
	EventVolume          = "volume"
	EventBookingsChanged = "bookings_changed"
	EventMessage         = "message"
	EventError           = "error"
)

// Event is the wire form of an observer callback.
type Event struct {
	Type    string             `json:"type"`
	Status  *Status            `json:"status,omitempty"`
	Volume  float64            `json:"volume"`
	Message *transcript.Update `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ChannelObserver turns callbacks into Events on a buffered channel. When
// the buffer is full, events are dropped rather than stalling the session.
type ChannelObserver struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped int
}

// NewChannelObserver creates a bridge with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

// Events returns the event channel. It is closed by Close.
func (c *ChannelObserver) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events did not fit in the buffer.
func (c *ChannelObserver) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the event channel. Later events are ignored.
func (c *ChannelObserver) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

func (c *ChannelObserver) send(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped++
	}
}

func (c *ChannelObserver) OnStateChange(s Status) {
	c.send(Event{Type: EventState, Status: &s})
}

func (c *ChannelObserver) OnVolume(level float64) {
	c.send(Event{Type: EventVolume, Volume: level})
}

func (c *ChannelObserver) OnBookingsChanged() {
	c.send(Event{Type: EventBookingsChanged})
}

func (c *ChannelObserver) OnMessage(u transcript.Update) {
	c.send(Event{Type: EventMessage, Message: &u})
}

func (c *ChannelObserver) OnError(msg string) {
	c.send(Event{Type: EventError, Error: msg})
}

var (
	_ Observer = ObserverFuncs{}
	_ Observer = (*ChannelObserver)(nil)
)
