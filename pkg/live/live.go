// Package live is a client for the Gemini Live bidirectional streaming API:
// microphone audio goes up, synthesized speech, transcriptions and function
// calls come back.
package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-concierge/pkg/pcm"
)

const (
	// DefaultURL is the Gemini Live websocket endpoint.
	DefaultURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio model.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultVoice is the prebuilt voice (Puck, Charon, Kore, Fenrir, Aoede).
	DefaultVoice = "Kore"
)

var (
	// ErrTransport means the stream failed or the server ended it.
	ErrTransport = errors.New("live: transport error")

	// ErrClosed is returned when sending on a closed stream.
	ErrClosed = errors.New("live: stream closed")

	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("live: API key is required")
)

// TransportError wraps a stream failure.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("live: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsTransport returns true if err is a stream failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// FunctionDeclaration announces a callable function in the session setup.
type FunctionDeclaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Config describes one live session.
type Config struct {
	APIKey            string
	URL               string
	Model             string
	Voice             string
	SystemInstruction string
	Tools             []FunctionDeclaration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	return c
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse answers one FunctionCall.
type FunctionResponse struct {
	ID     string
	Name   string
	Result any
}

// Message is one inbound server message, flattened. Fields are processed
// in declaration order.
type Message struct {
	SetupComplete bool

	// ToolCalls requested in this message.
	ToolCalls []FunctionCall

	// Cancelled tool call ids.
	Cancelled []string

	// Audio holds decoded 24 kHz PCM16 chunks from the model turn.
	Audio [][]byte

	// InputTranscript is a delta of the user's speech.
	InputTranscript string

	// OutputTranscript is a delta of the assistant's speech.
	OutputTranscript string

	// Interrupted reports the user spoke over the assistant.
	Interrupted bool

	// TurnComplete ends the model turn.
	TurnComplete bool

	// GoAway announces the server is about to close the stream.
	GoAway bool
}

// Stream is an open live session.
type Stream interface {
	// SendAudio streams one microphone frame.
	SendAudio(blob pcm.Blob) error

	// SendText sends a complete user text turn.
	SendText(text string) error

	// SendToolResponse returns function results.
	SendToolResponse(responses ...FunctionResponse) error

	// Messages yields inbound messages in arrival order and is closed when
	// the stream ends.
	Messages() <-chan Message

	// Err reports why Messages was closed: nil after Close, a
	// *TransportError otherwise.
	Err() error

	// Close ends the session. Safe to call repeatedly.
	Close() error
}

// Dialer opens streams.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Stream, error)
}
