// Package capture turns microphone audio into 16 kHz PCM frames for the live
// stream and measures input volume for the UI.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-concierge/pkg/audioio"
	"github.com/teslashibe/go-concierge/pkg/metrics"
	"github.com/teslashibe/go-concierge/pkg/pcm"
)

// FrameSize is the number of samples per outbound frame.
const FrameSize = 4096

// DefaultVolumeInterval is one display frame at 60 Hz.
const DefaultVolumeInterval = time.Second / 60

// ErrDeviceUnavailable is returned by Start when the microphone cannot be
// opened (permission denied, no device, busy).
var ErrDeviceUnavailable = audioio.ErrDeviceUnavailable

// ErrRunning is returned by Start on a pipeline that is already capturing.
var ErrRunning = errors.New("capture: already running")

// FrameSink receives encoded frames that passed the gate.
type FrameSink func(pcm.Blob)

// VolumeFunc receives the input level, 0-255, once per volume tick.
type VolumeFunc func(level float64)

// Config configures a Pipeline.
type Config struct {
	// Gate decides whether frames are forwarded. Required.
	Gate Gate

	// OnFrame receives forwarded frames.
	OnFrame FrameSink

	// OnVolume receives the level on every tick. Optional.
	OnVolume VolumeFunc

	// VolumeInterval is the volume tick period.
	// Default: 1/60 s
	VolumeInterval time.Duration
}

// Stats counts frames by disposition.
type Stats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Running bool  `json:"running"`
}

// Pipeline reads an audio source, re-blocks it into FrameSize frames and
// forwards them while the gate is open.
type Pipeline struct {
	src    audioio.Source
	cfg    Config
	logger *slog.Logger

	analyser *Analyser

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
}

// New creates a capture pipeline over src.
func New(src audioio.Source, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VolumeInterval <= 0 {
		cfg.VolumeInterval = DefaultVolumeInterval
	}
	return &Pipeline{
		src:      src,
		cfg:      cfg,
		logger:   logger.With("component", "capture"),
		analyser: NewAnalyser(),
	}
}

// Start opens the source and begins capture. If the device cannot be
// opened the source is closed and an error wrapping ErrDeviceUnavailable is
// returned.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrRunning
	}
	if p.cfg.Gate == nil {
		return fmt.Errorf("capture: gate is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := p.src.Start(runCtx); err != nil {
		cancel()
		_ = p.src.Close()
		if !audioio.IsDeviceUnavailable(err) {
			err = &audioio.DeviceError{Backend: p.src.Name(), Device: p.src.Config().Device, Cause: err}
		}
		p.logger.Warn("microphone unavailable", "error", err)
		return err
	}

	p.running = true
	p.cancel = cancel
	p.analyser.Reset()

	p.wg.Add(2)
	go p.frameLoop(runCtx)
	go p.volumeLoop(runCtx)

	p.logger.Info("capture started", "source", p.src.Name(), "frame_size", FrameSize)
	return nil
}

func (p *Pipeline) frameLoop(ctx context.Context) {
	defer p.wg.Done()

	stream := p.src.Stream()
	frame := make([]float32, 0, FrameSize)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			samples := chunk.Float32()
			for len(samples) > 0 {
				n := FrameSize - len(frame)
				if n > len(samples) {
					n = len(samples)
				}
				frame = append(frame, samples[:n]...)
				samples = samples[n:]
				if len(frame) == FrameSize {
					p.process(frame)
					frame = frame[:0]
				}
			}
		}
	}
}

func (p *Pipeline) process(frame []float32) {
	p.analyser.Write(frame)

	if !p.cfg.Gate.Open() {
		p.dropped.Add(1)
		metrics.CaptureFramesTotal.WithLabelValues("dropped").Inc()
		return
	}

	blob := pcm.EncodeBlob(frame)
	p.sent.Add(1)
	metrics.CaptureFramesTotal.WithLabelValues("sent").Inc()
	if p.cfg.OnFrame != nil {
		p.cfg.OnFrame(blob)
	}
}

func (p *Pipeline) volumeLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.VolumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.cfg.OnVolume == nil {
				continue
			}
			p.cfg.OnVolume(p.Volume())
		}
	}
}

// Volume returns the current input level, 0 while muted.
func (p *Pipeline) Volume() float64 {
	if p.cfg.Gate != nil && p.cfg.Gate.Muted() {
		return 0
	}
	return p.analyser.Level()
}

// Stop halts capture and releases the source. Safe to call repeatedly.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	err := p.src.Close()
	p.wg.Wait()

	p.logger.Info("capture stopped", "sent", p.sent.Load(), "dropped", p.dropped.Load())
	return err
}

// Stats returns frame counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return Stats{
		Sent:    p.sent.Load(),
		Dropped: p.dropped.Load(),
		Running: running,
	}
}
