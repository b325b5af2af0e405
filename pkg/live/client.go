package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-concierge/pkg/pcm"
)

const (
	// DefaultHandshakeTimeout bounds the websocket upgrade.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultSetupTimeout bounds the wait for setupComplete.
	DefaultSetupTimeout = 15 * time.Second

	messageBuffer = 64
)

// WSDialer opens Gemini Live sessions over gorilla/websocket.
type WSDialer struct {
	dialer       websocket.Dialer
	setupTimeout time.Duration
	logger       *slog.Logger
}

// NewWSDialer creates a dialer. A nil logger uses slog.Default().
func NewWSDialer(logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		setupTimeout: DefaultSetupTimeout,
		logger:       logger.With("component", "live"),
	}
}

// Dial connects, sends the session setup and waits for setupComplete.
func (d *WSDialer) Dial(ctx context.Context, cfg Config) (Stream, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("live: invalid url: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", cfg.APIKey)
	endpoint.RawQuery = q.Encode()

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	ws, resp, err := d.dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}

	c := &conn{
		ws:       ws,
		messages: make(chan Message, messageBuffer),
		done:     make(chan struct{}),
		logger:   d.logger,
	}

	if err := c.writeJSON(buildSetup(cfg)); err != nil {
		ws.Close()
		return nil, &TransportError{Op: "setup", Err: err}
	}
	if err := c.awaitSetup(ctx, d.setupTimeout); err != nil {
		ws.Close()
		return nil, &TransportError{Op: "setup", Err: err}
	}

	d.logger.Info("live session open", "model", cfg.Model, "voice", cfg.Voice, "tools", len(cfg.Tools))
	go c.readLoop()
	return c, nil
}

// conn is a live Stream backed by a websocket.
type conn struct {
	ws     *websocket.Conn
	wsMu   sync.Mutex
	logger *slog.Logger

	messages chan Message
	done     chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (c *conn) awaitSetup(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := parseMessage(data)
		if err != nil {
			c.logger.Debug("unparseable message during setup", "error", err)
			continue
		}
		if msg.SetupComplete {
			return nil
		}
		if msg.GoAway {
			return errors.New("server sent goAway during setup")
		}
	}
}

func (c *conn) readLoop() {
	defer close(c.done)
	defer close(c.messages)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.err = &TransportError{Op: "read", Err: err}
			}
			c.mu.Unlock()
			return
		}

		msg, err := parseMessage(data)
		if err != nil {
			c.logger.Debug("failed to parse message", "error", err)
			continue
		}
		c.messages <- msg
	}
}

func (c *conn) writeJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) send(op string, v any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := c.writeJSON(v); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

func (c *conn) SendAudio(blob pcm.Blob) error {
	return c.send("send audio", buildRealtimeInput(blob.MIMEType, blob.Data))
}

func (c *conn) SendText(text string) error {
	return c.send("send text", buildClientText(text))
}

func (c *conn) SendToolResponse(responses ...FunctionResponse) error {
	if len(responses) == 0 {
		return nil
	}
	return c.send("send tool response", buildToolResponse(responses))
}

func (c *conn) Messages() <-chan Message {
	return c.messages
}

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and waits for the read loop to exit. Messages
// still buffered are drained so the loop cannot block on a full channel.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.wsMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wsMu.Unlock()
	err := c.ws.Close()

	go func() {
		for range c.messages {
		}
	}()
	<-c.done
	return err
}

var _ Stream = (*conn)(nil)
var _ Dialer = (*WSDialer)(nil)
