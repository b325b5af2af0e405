// Package playback schedules streamed speech chunks back to back on an
// output clock so consecutive segments never overlap or leave gaps.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-concierge/pkg/metrics"
	"github.com/teslashibe/go-concierge/pkg/pcm"
)

// ErrEmptyChunk is returned for chunks that decode to no samples.
var ErrEmptyChunk = errors.New("playback: empty audio chunk")

// Segment describes one scheduled buffer on the output clock.
type Segment struct {
	Start    float64
	Duration float64
}

// End returns the clock time the segment finishes.
func (s Segment) End() float64 { return s.Start + s.Duration }

// Scheduler owns the playback cursor and the set of in-flight voices.
type Scheduler struct {
	out        Output
	sampleRate int
	logger     *slog.Logger

	mu       sync.Mutex
	next     float64
	seq      uint64
	inFlight map[uint64]Voice

	// OnSchedule, if set, observes every scheduled segment.
	OnSchedule func(Segment)
}

// NewScheduler creates a scheduler for 24 kHz mono speech on out.
func NewScheduler(out Output, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		out:        out,
		sampleRate: pcm.OutputSampleRate,
		logger:     logger.With("component", "playback"),
		inFlight:   make(map[uint64]Voice),
	}
}

// Enqueue decodes a PCM16 chunk and schedules it at
// max(CurrentTime, NextStartTime). The cursor only moves when the output
// accepted the buffer.
func (s *Scheduler) Enqueue(chunk []byte) (Segment, error) {
	buf := pcm.Decode(chunk, s.sampleRate, 1)
	if buf.Len() == 0 {
		metrics.PlaybackSegmentsTotal.WithLabelValues("dropped").Inc()
		s.logger.Debug("dropping empty audio chunk", "bytes", len(chunk))
		return Segment{}, ErrEmptyChunk
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.out.CurrentTime()
	if s.next > start {
		start = s.next
	}

	s.seq++
	id := s.seq
	voice, err := s.out.Start(buf, start, func() { s.finished(id) })
	if err != nil {
		metrics.PlaybackSegmentsTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn("failed to schedule audio", "error", err)
		return Segment{}, fmt.Errorf("playback: start segment: %w", err)
	}

	seg := Segment{Start: start, Duration: buf.Duration()}
	s.next = seg.End()
	s.inFlight[id] = voice
	metrics.PlaybackSegmentsTotal.WithLabelValues("scheduled").Inc()
	metrics.PlaybackInFlight.Set(float64(len(s.inFlight)))

	if s.OnSchedule != nil {
		s.OnSchedule(seg)
	}
	return seg, nil
}

func (s *Scheduler) finished(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
	metrics.PlaybackInFlight.Set(float64(len(s.inFlight)))
}

// Interrupt stops all scheduled audio, as when the user talks over the
// assistant. The cursor restarts from the current clock.
func (s *Scheduler) Interrupt() {
	s.stopAll()
}

// Reset stops all scheduled audio and rewinds the cursor to zero.
func (s *Scheduler) Reset() {
	s.stopAll()
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	voices := s.inFlight
	s.inFlight = make(map[uint64]Voice)
	s.next = 0
	s.mu.Unlock()

	for _, v := range voices {
		v.Stop()
	}
	metrics.PlaybackInFlight.Set(0)
	if len(voices) > 0 {
		s.logger.Debug("playback truncated", "voices", len(voices))
	}
}

// NextStartTime returns the cursor.
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// InFlight returns the number of segments scheduled but not finished.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
