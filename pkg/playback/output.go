package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-concierge/pkg/audioio"
	"github.com/teslashibe/go-concierge/pkg/pcm"
)

// Output is a clocked audio destination. Buffers are started at absolute
// times on the output clock.
type Output interface {
	// CurrentTime returns the output clock in seconds.
	CurrentTime() float64

	// Start schedules buf to begin at the given clock time. onEnded is
	// invoked asynchronously once the buffer has finished, and never if the
	// voice is stopped first.
	Start(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error)
}

// Voice is one scheduled buffer.
type Voice interface {
	// Stop cancels the buffer, silencing it if it is already audible.
	Stop()
}

// SinkOutput implements Output on top of an audioio.Sink. Each voice
// sleeps until its start time, then writes its PCM to the sink.
type SinkOutput struct {
	sink   audioio.Sink
	logger *slog.Logger
	origin time.Time

	mu     sync.Mutex
	voices map[*sinkVoice]struct{}
}

// NewSinkOutput creates an output whose clock starts now.
func NewSinkOutput(sink audioio.Sink, logger *slog.Logger) *SinkOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkOutput{
		sink:   sink,
		logger: logger,
		origin: time.Now(),
		voices: make(map[*sinkVoice]struct{}),
	}
}

// Open starts the underlying sink.
func (o *SinkOutput) Open(ctx context.Context) error {
	return o.sink.Start(ctx)
}

// Close stops every voice and closes the sink.
func (o *SinkOutput) Close() error {
	o.mu.Lock()
	voices := make([]*sinkVoice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	return o.sink.Close()
}

// CurrentTime implements Output.
func (o *SinkOutput) CurrentTime() float64 {
	return time.Since(o.origin).Seconds()
}

// Start implements Output.
func (o *SinkOutput) Start(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error) {
	v := &sinkVoice{out: o, buf: buf, onEnded: onEnded}

	o.mu.Lock()
	o.voices[v] = struct{}{}
	o.mu.Unlock()

	delay := time.Duration((at - o.CurrentTime()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	v.mu.Lock()
	v.timer = time.AfterFunc(delay, v.play)
	v.mu.Unlock()
	return v, nil
}

func (o *SinkOutput) forget(v *sinkVoice) {
	o.mu.Lock()
	delete(o.voices, v)
	o.mu.Unlock()
}

type sinkVoice struct {
	out     *SinkOutput
	buf     *pcm.Buffer
	onEnded func()

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stopped bool
}

func (v *sinkVoice) play() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.started = true
	var chunk audioio.AudioChunk
	chunk.FromBytes(v.buf.Interleaved(), v.buf.SampleRate, v.buf.Channels)
	v.timer = time.AfterFunc(time.Duration(v.buf.Duration()*float64(time.Second)), v.end)
	v.mu.Unlock()

	if err := v.out.sink.Write(context.Background(), chunk); err != nil {
		v.out.logger.Warn("playback write failed", "error", err)
	}
}

func (v *sinkVoice) end() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	onEnded := v.onEnded
	v.mu.Unlock()

	v.out.forget(v)
	if onEnded != nil {
		onEnded()
	}
}

// Stop implements Voice.
func (v *sinkVoice) Stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	if v.timer != nil {
		v.timer.Stop()
	}
	audible := v.started
	v.mu.Unlock()

	v.out.forget(v)
	if audible {
		if err := v.out.sink.Clear(); err != nil {
			v.out.logger.Warn("playback clear failed", "error", err)
		}
	}
}
