// Package session runs one voice conversation: it owns the live stream,
// the microphone pipeline, speech playback, the transcript and tool calls,
// and exposes a small state machine to the UI.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-concierge/pkg/audioio"
	"github.com/teslashibe/go-concierge/pkg/capture"
	"github.com/teslashibe/go-concierge/pkg/live"
	"github.com/teslashibe/go-concierge/pkg/metrics"
	"github.com/teslashibe/go-concierge/pkg/pcm"
	"github.com/teslashibe/go-concierge/pkg/playback"
	"github.com/teslashibe/go-concierge/pkg/tools"
	"github.com/teslashibe/go-concierge/pkg/transcript"
)

// ConnectionErrorMessage is shown to the user when the stream fails.
const ConnectionErrorMessage = "Connection error. Please try again."

// MicrophoneErrorMessage is shown when the capture device cannot be opened.
const MicrophoneErrorMessage = "Microphone unavailable. Please check your audio device."

var (
	// ErrBusy is returned by Connect while a teardown is in progress.
	ErrBusy = errors.New("session: disconnect in progress")

	// ErrCancelled is returned by Connect when Disconnect was called before
	// the connection was established.
	ErrCancelled = errors.New("session: connect cancelled")
)

const resultBuffer = 16

// Config configures a Session.
type Config struct {
	// Live carries the model settings. An empty SystemInstruction is
	// replaced by Instructions(now) and empty Tools by the booking tools.
	Live live.Config

	// Greeting is the text turn sent after the stream opens.
	// Default: DefaultGreeting
	Greeting string

	// VolumeInterval is the microphone level tick.
	// Default: capture.DefaultVolumeInterval
	VolumeInterval time.Duration
}

// Deps are the collaborators of a Session. Sources and sinks are created
// per connection because they cannot be reopened once closed.
type Deps struct {
	Dialer     live.Dialer
	NewSource  func() (audioio.Source, error)
	NewSink    func() (audioio.Sink, error)
	Dispatcher *tools.Dispatcher
	Logger     *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the conversation state machine. Construct it with New.
type Session struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	gate       *capture.Switch
	reconciler *transcript.Reconciler

	mu    sync.Mutex
	state State
	gen   uint64
	conn  *connection

	notifyMu  sync.Mutex
	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// connection holds everything that lives for one Connect.
type connection struct {
	ctx    context.Context
	cancel context.CancelFunc

	capture   *capture.Pipeline
	output    *playback.SinkOutput
	scheduler *playback.Scheduler
	results   chan tools.Result
	gate      *connGate

	mu     sync.Mutex
	stream live.Stream

	teardownOnce sync.Once
}

// connGate forwards frames only while its connection is the active one
// and the session is unmuted.
type connGate struct {
	active atomic.Bool
	mute   *capture.Switch
}

func (g *connGate) Open() bool  { return g.active.Load() && !g.mute.Muted() }
func (g *connGate) Muted() bool { return g.mute.Muted() }

func (c *connection) getStream() live.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// New creates a disconnected session.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Dialer == nil {
		return nil, fmt.Errorf("session: dialer is required")
	}
	if deps.NewSource == nil || deps.NewSink == nil {
		return nil, fmt.Errorf("session: audio source and sink factories are required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("session: tool dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if len(cfg.Live.Tools) == 0 {
		cfg.Live.Tools = FunctionDeclarations()
	}

	s := &Session{
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger.With("component", "session"),
		gate:      &capture.Switch{},
		observers: make(map[int]Observer),
	}
	s.reconciler = transcript.New(func(u transcript.Update, _ []transcript.Message) {
		s.each(func(o Observer) { o.OnMessage(u) })
	})
	deps.Dispatcher.OnRefresh(func() {
		s.each(func(o Observer) { o.OnBookingsChanged() })
	})
	metrics.SetSessionState(Disconnected.String(), stateNames)
	return s, nil
}

// FunctionDeclarations maps the booking tools to live declarations.
func FunctionDeclarations() []live.FunctionDeclaration {
	decls := tools.Declarations()
	out := make([]live.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, live.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}

// Subscribe registers an observer. The returned function removes it.
func (s *Session) Subscribe(o Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Session) each(fn func(Observer)) {
	s.obsMu.RLock()
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.obsMu.RUnlock()

	for _, o := range obs {
		fn(o)
	}
}

// Status returns the current state and mute flag.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	return Status{State: s.state, Muted: s.gate.Muted()}
}

// Messages returns a copy of the conversation log.
func (s *Session) Messages() []transcript.Message {
	return s.reconciler.Messages()
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	metrics.SetSessionState(st.String(), stateNames)
}

// notifyState publishes the current status. Notifications are serialized so
// observers see transitions in order.
func (s *Session) notifyState() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	st := s.Status()
	s.each(func(o Observer) { o.OnStateChange(st) })
}

func (s *Session) notifyError(msg string) {
	s.each(func(o Observer) { o.OnError(msg) })
}

// Connect opens a conversation. It is a no-op while Connecting or
// Connected. If the microphone cannot be opened the error wraps
// capture.ErrDeviceUnavailable and nothing stays open.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connecting, Connected:
		s.mu.Unlock()
		return nil
	case Erroring, Disconnecting:
		s.mu.Unlock()
		return ErrBusy
	}
	s.gen++
	gen := s.gen
	s.gate.SetMuted(false)
	s.setStateLocked(Connecting)
	s.mu.Unlock()
	s.notifyState()

	c, err := s.open(ctx)
	if err != nil {
		metrics.SessionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("connect failed", "error", err)

		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.setStateLocked(Disconnected)
		}
		s.mu.Unlock()
		if current {
			if errors.Is(err, capture.ErrDeviceUnavailable) {
				s.notifyError(MicrophoneErrorMessage)
			} else {
				s.notifyError(ConnectionErrorMessage)
			}
			s.notifyState()
		}
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.teardown(c)
		return ErrCancelled
	}
	s.conn = c
	s.setStateLocked(Connected)
	s.gate.SetConnected(true)
	c.gate.active.Store(true)
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues("connected").Inc()
	s.logger.Info("session connected")
	s.notifyState()

	go s.loop(c)
	return nil
}

// open builds a connection: playback first, then the microphone, then the
// stream. Anything opened is released on failure.
func (s *Session) open(ctx context.Context) (*connection, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &connection{
		ctx:     runCtx,
		cancel:  cancel,
		results: make(chan tools.Result, resultBuffer),
		gate:    &connGate{mute: s.gate},
	}

	sink, err := s.deps.NewSink()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("session: open speaker: %w", err)
	}
	c.output = playback.NewSinkOutput(sink, s.deps.Logger)
	if err := c.output.Open(runCtx); err != nil {
		c.output.Close()
		cancel()
		return nil, fmt.Errorf("session: open speaker: %w", err)
	}
	c.scheduler = playback.NewScheduler(c.output, s.deps.Logger)

	src, err := s.deps.NewSource()
	if err != nil {
		s.teardown(c)
		if !audioio.IsDeviceUnavailable(err) {
			err = &audioio.DeviceError{Backend: "factory", Cause: err}
		}
		return nil, fmt.Errorf("session: open microphone: %w", err)
	}
	c.capture = capture.New(src, capture.Config{
		Gate:           c.gate,
		OnFrame:        func(b pcm.Blob) { s.sendFrame(c, b) },
		OnVolume:       func(level float64) { s.each(func(o Observer) { o.OnVolume(level) }) },
		VolumeInterval: s.cfg.VolumeInterval,
	}, s.deps.Logger)
	if err := c.capture.Start(runCtx); err != nil {
		s.teardown(c)
		return nil, fmt.Errorf("session: open microphone: %w", err)
	}

	liveCfg := s.cfg.Live
	if liveCfg.SystemInstruction == "" {
		liveCfg.SystemInstruction = Instructions(s.deps.Now())
	}
	stream, err := s.deps.Dialer.Dial(ctx, liveCfg)
	if err != nil {
		s.teardown(c)
		return nil, err
	}
	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	if err := stream.SendText(s.cfg.Greeting); err != nil {
		s.teardown(c)
		return nil, err
	}
	return c, nil
}

func (s *Session) sendFrame(c *connection, blob pcm.Blob) {
	stream := c.getStream()
	if stream == nil {
		return
	}
	if err := stream.SendAudio(blob); err != nil {
		s.logger.Debug("failed to send audio frame", "error", err)
	}
}

// teardown releases a connection. Safe to call more than once. It leaves
// the transcript alone: a stale connection may be released while a newer
// one is live.
func (s *Session) teardown(c *connection) {
	c.teardownOnce.Do(func() {
		c.gate.active.Store(false)
		c.cancel()
		if c.capture != nil {
			c.capture.Stop()
		}
		if c.scheduler != nil {
			c.scheduler.Reset()
		}
		if c.output != nil {
			c.output.Close()
		}
		if stream := c.getStream(); stream != nil {
			stream.Close()
		}
	})
}

// Mute stops forwarding microphone frames. Capture keeps running.
func (s *Session) Mute() {
	s.setMuted(true)
}

// Unmute resumes forwarding microphone frames.
func (s *Session) Unmute() {
	s.setMuted(false)
}

func (s *Session) setMuted(muted bool) {
	if s.gate.Muted() == muted {
		return
	}
	s.gate.SetMuted(muted)
	s.logger.Info("microphone", "muted", muted)
	s.notifyState()
}

// Disconnect ends the conversation. Safe to call from any state.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	switch s.state {
	case Disconnected, Disconnecting, Erroring:
		s.mu.Unlock()
		return nil
	case Connecting:
		// The pending Connect sees the generation change and releases
		// what it opened.
		s.gen++
		s.gate.SetMuted(false)
		s.setStateLocked(Disconnected)
		s.mu.Unlock()
		s.notifyState()
		return nil
	}
	c := s.conn
	s.conn = nil
	s.gate.SetConnected(false)
	s.setStateLocked(Disconnecting)
	s.mu.Unlock()
	s.notifyState()

	s.teardown(c)
	s.reconciler.Reset()

	s.mu.Lock()
	s.gate.SetMuted(false)
	s.setStateLocked(Disconnected)
	s.mu.Unlock()
	s.logger.Info("session disconnected")
	s.notifyState()
	return nil
}

// Close disconnects and waits for in-flight tool calls to finish.
func (s *Session) Close() error {
	err := s.Disconnect()
	s.deps.Dispatcher.Wait()
	return err
}

// fail tears down c after a stream error. The error is surfaced before
// the state returns to Disconnected.
func (s *Session) fail(c *connection, err error) {
	s.mu.Lock()
	if s.conn != c {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.gate.SetConnected(false)
	s.setStateLocked(Erroring)
	s.mu.Unlock()

	metrics.SessionsTotal.WithLabelValues("errored").Inc()
	s.logger.Error("live stream failed", "error", err)
	s.notifyState()
	s.notifyError(ConnectionErrorMessage)

	s.teardown(c)
	s.reconciler.Reset()

	s.mu.Lock()
	s.gate.SetMuted(false)
	s.setStateLocked(Disconnected)
	s.mu.Unlock()
	s.notifyState()
}
