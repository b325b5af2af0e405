package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

const (
	ffmpegBinary = "ffmpeg"
	ffplayBinary = "ffplay"
)

// lookPath is swapped in tests to simulate missing tools.
var lookPath = exec.LookPath

// captureArgs returns ffmpeg arguments that write raw s16le microphone audio
// to stdout.
func captureArgs(goos string, cfg Config) ([]string, error) {
	var input []string
	switch goos {
	case "darwin":
		dev := cfg.Device
		if dev == "" {
			dev = ":0"
		}
		input = []string{"-f", "avfoundation", "-i", dev}
	case "linux":
		dev := cfg.Device
		if dev == "" {
			dev = "default"
		}
		input = []string{"-f", "pulse", "-i", dev}
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s", goos)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, input...)
	args = append(args,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le", "-",
	)
	return args, nil
}

// playbackArgs returns ffplay arguments that read raw s16le audio from stdin.
func playbackArgs(cfg Config) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "pipe:0",
	}
}

// ExecSource captures microphone audio through an ffmpeg subprocess.
type ExecSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	running  bool
	closed   bool
	streamCh chan AudioChunk
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewExecSource creates an ffmpeg-backed source. The process is not launched
// until Start.
func NewExecSource(cfg Config, logger *slog.Logger) *ExecSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 16),
	}
}

// Start launches ffmpeg and begins reading PCM frames.
func (s *ExecSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if _, err := lookPath(ffmpegBinary); err != nil {
		return &DeviceError{Backend: string(BackendExec), Device: s.cfg.Device, Cause: err}
	}
	args, err := captureArgs(runtime.GOOS, s.cfg)
	if err != nil {
		return &DeviceError{Backend: string(BackendExec), Device: s.cfg.Device, Cause: err}
	}

	cmd := exec.Command(ffmpegBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return &DeviceError{Backend: string(BackendExec), Device: s.cfg.Device, Cause: err}
	}

	s.cmd = cmd
	s.stdout = stdout
	s.running = true
	s.streamCh = make(chan AudioChunk, 16)
	s.done = make(chan struct{})

	go s.readLoop(ctx, stdout, s.streamCh, s.done)

	s.logger.Info("ffmpeg capture started",
		"device", s.cfg.Device,
		"sample_rate", s.cfg.SampleRate,
	)
	return nil
}

func (s *ExecSource) readLoop(ctx context.Context, r io.Reader, out chan<- AudioChunk, done chan struct{}) {
	defer close(out)
	defer close(done)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			var chunk AudioChunk
			chunk.FromBytes(buf[:n-n%2], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				s.overruns.Add(1)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				s.logger.Warn("ffmpeg capture read failed", "error", err)
			}
			return
		}
	}
}

// Stop kills the ffmpeg process.
func (s *ExecSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cmd := s.cmd
	done := s.done
	s.cmd = nil
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	if done != nil {
		<-done
	}
	s.logger.Info("ffmpeg capture stopped")
	return nil
}

// Read returns the next captured chunk.
func (s *ExecSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel for the current run.
func (s *ExecSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *ExecSource) Config() Config { return s.cfg }

// Name returns "exec".
func (s *ExecSource) Name() string { return string(BackendExec) }

// Close stops capture permanently.
func (s *ExecSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns capture statistics.
func (s *ExecSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     string(BackendExec),
	}
}

var _ SourceWithStats = (*ExecSource)(nil)

// ExecSink plays audio through an ffplay subprocess fed on stdin.
type ExecSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	closed  bool

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	clears         atomic.Int64
}

// NewExecSink creates an ffplay-backed sink.
func NewExecSink(cfg Config, logger *slog.Logger) *ExecSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSink{cfg: cfg, logger: logger}
}

// Start launches ffplay.
func (s *ExecSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if _, err := lookPath(ffplayBinary); err != nil {
		return &DeviceError{Backend: string(BackendExec), Device: s.cfg.Device, Cause: err}
	}
	if err := s.startLocked(); err != nil {
		return &DeviceError{Backend: string(BackendExec), Device: s.cfg.Device, Cause: err}
	}
	s.running = true
	s.logger.Info("ffplay playback started", "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *ExecSink) startLocked() error {
	cmd := exec.Command(ffplayBinary, playbackArgs(s.cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

func (s *ExecSink) killLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
}

// Write pipes the chunk into ffplay.
func (s *ExecSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running || s.stdin == nil {
		return io.ErrClosedPipe
	}
	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("write ffplay stdin: %w", err)
	}
	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Clear restarts ffplay, dropping whatever it had buffered.
func (s *ExecSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.killLocked()
	s.clears.Add(1)
	return s.startLocked()
}

// Stop kills ffplay.
func (s *ExecSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.killLocked()
	s.logger.Info("ffplay playback stopped")
	return nil
}

// Config returns the audio configuration.
func (s *ExecSink) Config() Config { return s.cfg }

// Name returns "exec".
func (s *ExecSink) Name() string { return string(BackendExec) }

// Close stops playback permanently.
func (s *ExecSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns playback statistics.
func (s *ExecSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Clears:         s.clears.Load(),
		Running:        running,
		Backend:        string(BackendExec),
	}
}

var _ SinkWithStats = (*ExecSink)(nil)
