package playback

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/teslashibe/go-concierge/pkg/pcm"
)

type fakeVoice struct {
	at       float64
	buf      *pcm.Buffer
	onEnded  func()
	stopped  bool
	stopOnce sync.Once
}

func (v *fakeVoice) Stop() { v.stopOnce.Do(func() { v.stopped = true }) }

// fakeOutput is a manually advanced clock.
type fakeOutput struct {
	now    float64
	voices []*fakeVoice
	fail   error
}

func (o *fakeOutput) CurrentTime() float64 { return o.now }

func (o *fakeOutput) Start(buf *pcm.Buffer, at float64, onEnded func()) (Voice, error) {
	if o.fail != nil {
		return nil, o.fail
	}
	v := &fakeVoice{at: at, buf: buf, onEnded: onEnded}
	o.voices = append(o.voices, v)
	return v, nil
}

func chunkOf(samples int) []byte {
	return make([]byte, samples*pcm.BytesPerSample)
}

func TestEnqueueBackToBack(t *testing.T) {
	out := &fakeOutput{now: 1.0}
	s := NewScheduler(out, nil)

	seg1, err := s.Enqueue(chunkOf(24000)) // 1s
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if seg1.Start != 1.0 || seg1.Duration != 1.0 {
		t.Errorf("seg1 = %+v, want start 1 duration 1", seg1)
	}

	out.now = 1.5
	seg2, err := s.Enqueue(chunkOf(12000))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if seg2.Start != 2.0 {
		t.Errorf("seg2 start = %v, want 2.0", seg2.Start)
	}
	if got := s.NextStartTime(); got != 2.5 {
		t.Errorf("NextStartTime = %v, want 2.5", got)
	}

	// After a gap the clock wins.
	out.now = 10
	seg3, _ := s.Enqueue(chunkOf(2400))
	if seg3.Start != 10 {
		t.Errorf("seg3 start = %v, want 10", seg3.Start)
	}
	if s.InFlight() != 3 {
		t.Errorf("InFlight = %d, want 3", s.InFlight())
	}
}

func TestNoOverlapForRandomCadence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	out := &fakeOutput{}
	s := NewScheduler(out, nil)

	var segs []Segment
	s.OnSchedule = func(seg Segment) { segs = append(segs, seg) }

	for i := 0; i < 500; i++ {
		out.now += rng.Float64() * 0.3
		before := out.now
		seg, err := s.Enqueue(chunkOf(1 + rng.Intn(9000)))
		if err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		if seg.Start < before {
			t.Fatalf("segment %d starts in the past: %v < %v", i, seg.Start, before)
		}
	}

	for i := 1; i < len(segs); i++ {
		if segs[i].Start < segs[i-1].End()-1e-9 {
			t.Fatalf("segments %d and %d overlap: %+v %+v", i-1, i, segs[i-1], segs[i])
		}
	}
}

func TestEmptyChunkLeavesCursor(t *testing.T) {
	out := &fakeOutput{now: 3}
	s := NewScheduler(out, nil)

	for _, chunk := range [][]byte{nil, {}, {0x01}} {
		if _, err := s.Enqueue(chunk); !errors.Is(err, ErrEmptyChunk) {
			t.Errorf("Enqueue(%v) error = %v, want ErrEmptyChunk", chunk, err)
		}
	}
	if got := s.NextStartTime(); got != 0 {
		t.Errorf("NextStartTime = %v, want 0", got)
	}
	if len(out.voices) != 0 {
		t.Errorf("output got %d voices, want 0", len(out.voices))
	}
}

func TestStartFailureLeavesCursor(t *testing.T) {
	out := &fakeOutput{now: 1}
	s := NewScheduler(out, nil)
	if _, err := s.Enqueue(chunkOf(2400)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	cursor := s.NextStartTime()

	out.fail = errors.New("device gone")
	if _, err := s.Enqueue(chunkOf(2400)); err == nil {
		t.Fatal("expected error")
	}
	if got := s.NextStartTime(); got != cursor {
		t.Errorf("cursor moved on failure: %v -> %v", cursor, got)
	}
	if s.InFlight() != 1 {
		t.Errorf("InFlight = %d, want 1", s.InFlight())
	}
}

func TestEndedVoicesLeaveInFlight(t *testing.T) {
	out := &fakeOutput{}
	s := NewScheduler(out, nil)
	s.Enqueue(chunkOf(2400))
	s.Enqueue(chunkOf(2400))

	out.voices[0].onEnded()
	if s.InFlight() != 1 {
		t.Errorf("InFlight = %d, want 1", s.InFlight())
	}
	out.voices[1].onEnded()
	if s.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", s.InFlight())
	}
}

func TestResetStopsEverything(t *testing.T) {
	out := &fakeOutput{now: 2}
	s := NewScheduler(out, nil)
	for i := 0; i < 3; i++ {
		s.Enqueue(chunkOf(24000))
	}

	s.Reset()
	for i, v := range out.voices {
		if !v.stopped {
			t.Errorf("voice %d not stopped", i)
		}
	}
	if s.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", s.InFlight())
	}
	if s.NextStartTime() != 0 {
		t.Errorf("NextStartTime = %v, want 0", s.NextStartTime())
	}

	// A late completion of a stopped voice is harmless.
	out.voices[0].onEnded()

	seg, _ := s.Enqueue(chunkOf(2400))
	if seg.Start != 2 {
		t.Errorf("start after reset = %v, want current time 2", seg.Start)
	}
}

func TestInterruptStartsFromNow(t *testing.T) {
	out := &fakeOutput{now: 1}
	s := NewScheduler(out, nil)
	s.Enqueue(chunkOf(48000))

	out.now = 1.2
	s.Interrupt()
	seg, _ := s.Enqueue(chunkOf(2400))
	if seg.Start != 1.2 {
		t.Errorf("start after interrupt = %v, want 1.2", seg.Start)
	}
}
