package capture

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyser defaults, matching a browser AnalyserNode.
const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Analyser turns the most recent FFTSize samples into byte frequency bins
// the way a Web Audio AnalyserNode does: Blackman window, magnitude
// spectrum, exponential smoothing over calls, dB scaled into 0-255.
type Analyser struct {
	mu sync.Mutex

	size      int
	smoothing float64
	minDB     float64
	maxDB     float64

	ring []float64
	pos  int

	fft      *fourier.FFT
	window   []float64
	scratch  []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser creates an analyser with the default parameters.
func NewAnalyser() *Analyser {
	return NewAnalyserWith(DefaultFFTSize, DefaultSmoothing, DefaultMinDecibels, DefaultMaxDecibels)
}

// NewAnalyserWith creates an analyser. size must be a power of two.
func NewAnalyserWith(size int, smoothing, minDB, maxDB float64) *Analyser {
	a := &Analyser{
		size:      size,
		smoothing: smoothing,
		minDB:     minDB,
		maxDB:     maxDB,
		ring:      make([]float64, size),
		fft:       fourier.NewFFT(size),
		window:    blackman(size),
		scratch:   make([]float64, size),
		coeffs:    make([]complex128, size/2+1),
		smoothed:  make([]float64, size/2),
	}
	return a
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := 0.5 * (1 - alpha)
	a1 := 0.5
	a2 := 0.5 * alpha
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// Write feeds samples; only the last FFTSize are retained.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) >= a.size {
		samples = samples[len(samples)-a.size:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) % a.size
	}
}

// ByteFrequencyData fills dst (len FFTSize/2) with the current spectrum.
// Each call advances the smoothing state.
func (a *Analyser) ByteFrequencyData(dst []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	bins := a.size / 2
	if cap(dst) < bins {
		dst = make([]byte, bins)
	}
	dst = dst[:bins]

	for i := 0; i < a.size; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%a.size] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	scale := 1 / float64(a.size)
	span := a.maxDB - a.minDB
	for k := 0; k < bins; k++ {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - a.minDB) / span
		switch {
		case math.IsNaN(v) || v < 0:
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return dst
}

// Level returns the mean of the byte frequency bins, 0-255.
func (a *Analyser) Level() float64 {
	data := a.ByteFrequencyData(nil)
	if len(data) == 0 {
		return 0
	}
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return float64(sum) / float64(len(data))
}

// Reset clears the sample window and smoothing state.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
	a.pos = 0
}
