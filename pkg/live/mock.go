package live

import (
	"context"
	"sync"

	"github.com/teslashibe/go-concierge/pkg/pcm"
)

// MockStream is an in-memory Stream for tests. Inbound messages are pushed
// with Deliver; outbound traffic is recorded.
type MockStream struct {
	mu        sync.Mutex
	messages  chan Message
	closed    bool
	ended     bool
	err       error
	audio     []pcm.Blob
	texts     []string
	responses []FunctionResponse
	sendErr   error
}

// NewMockStream creates an open mock stream.
func NewMockStream() *MockStream {
	return &MockStream{messages: make(chan Message, messageBuffer)}
}

// Deliver queues an inbound message. It returns false once the stream ended.
func (m *MockStream) Deliver(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return false
	}
	m.messages <- msg
	return true
}

// Fail ends the stream as if the transport broke.
func (m *MockStream) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.err = &TransportError{Op: "read", Err: err}
	m.ended = true
	close(m.messages)
}

// FailSends makes every subsequent send return err.
func (m *MockStream) FailSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *MockStream) record(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.sendErr != nil {
		return &TransportError{Op: "send", Err: m.sendErr}
	}
	fn()
	return nil
}

func (m *MockStream) SendAudio(blob pcm.Blob) error {
	return m.record(func() { m.audio = append(m.audio, blob) })
}

func (m *MockStream) SendText(text string) error {
	return m.record(func() { m.texts = append(m.texts, text) })
}

func (m *MockStream) SendToolResponse(responses ...FunctionResponse) error {
	return m.record(func() { m.responses = append(m.responses, responses...) })
}

func (m *MockStream) Messages() <-chan Message {
	return m.messages
}

func (m *MockStream) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if !m.ended {
		m.ended = true
		close(m.messages)
	}
	return nil
}

// Closed reports whether Close was called.
func (m *MockStream) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Audio returns the frames sent so far.
func (m *MockStream) Audio() []pcm.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pcm.Blob(nil), m.audio...)
}

// Texts returns the text turns sent so far.
func (m *MockStream) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Responses returns the tool responses sent so far.
func (m *MockStream) Responses() []FunctionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FunctionResponse(nil), m.responses...)
}

// MockDialer hands out mock streams and records the configs it was given.
type MockDialer struct {
	mu      sync.Mutex
	streams []*MockStream
	configs []Config
	err     error
}

// NewMockDialer creates a dialer that succeeds.
func NewMockDialer() *MockDialer {
	return &MockDialer{}
}

// FailWith makes subsequent dials return err.
func (d *MockDialer) FailWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *MockDialer) Dial(ctx context.Context, cfg Config) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.configs = append(d.configs, cfg)
	if d.err != nil {
		return nil, &TransportError{Op: "dial", Err: d.err}
	}
	s := NewMockStream()
	d.streams = append(d.streams, s)
	return s, nil
}

// Last returns the most recently dialed stream, or nil.
func (d *MockDialer) Last() *MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Configs returns every config passed to Dial.
func (d *MockDialer) Configs() []Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Config(nil), d.configs...)
}

var _ Stream = (*MockStream)(nil)
var _ Dialer = (*MockDialer)(nil)
