// Package pcm converts between floating point audio samples and the 16-bit
// little-endian PCM used on the wire by the live conversation stream.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Sample rates used by the live stream.
const (
	InputSampleRate  = 16000 // microphone audio sent upstream
	OutputSampleRate = 24000 // synthesized speech received downstream
	BytesPerSample   = 2
)

// Blob is an encoded audio payload with its MIME type.
type Blob struct {
	Data     []byte
	MIMEType string
}

// MIMEType returns the PCM MIME type for a sample rate, e.g. "audio/pcm;rate=16000".
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// Encode converts samples in [-1, 1] to 16-bit signed little-endian PCM.
// Out-of-range samples are clamped.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// EncodeBlob encodes microphone samples captured at InputSampleRate.
func EncodeBlob(samples []float32) Blob {
	return Blob{Data: Encode(samples), MIMEType: MIMEType(InputSampleRate)}
}

func floatToInt16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s >= 1:
		return 0x7FFF
	case s <= -1:
		return -0x8000
	case s < 0:
		return int16(s * 0x8000)
	default:
		return int16(s * 0x7FFF)
	}
}

// Buffer is decoded, playable audio. Data holds one slice per channel.
type Buffer struct {
	SampleRate int
	Channels   int
	Data       [][]float32
}

// Len returns the number of sample frames in the buffer.
func (b *Buffer) Len() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// Interleaved returns the buffer as interleaved 16-bit PCM bytes, the
// format audio sinks expect.
func (b *Buffer) Interleaved() []byte {
	frames := b.Len()
	out := make([]byte, frames*b.Channels*BytesPerSample)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < b.Channels; ch++ {
			off := (i*b.Channels + ch) * BytesPerSample
			binary.LittleEndian.PutUint16(out[off:], uint16(unscale(b.Data[ch][i])))
		}
	}
	return out
}

// unscale is the exact inverse of the Decode scaling, so decoded audio
// reaches the sink bit-identical to what arrived on the wire.
func unscale(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Decode converts interleaved 16-bit little-endian PCM into a Buffer.
// Trailing bytes that do not form a whole frame are dropped. A non-positive
// channel count is treated as mono.
func Decode(data []byte, sampleRate, channels int) *Buffer {
	if channels <= 0 {
		channels = 1
	}
	frames := len(data) / (BytesPerSample * channels)

	buf := &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       make([][]float32, channels),
	}
	for ch := range buf.Data {
		buf.Data[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * BytesPerSample
			s := int16(binary.LittleEndian.Uint16(data[off:]))
			buf.Data[ch][i] = float32(s) / 32768.0
		}
	}
	return buf
}

// Int16FromBytes converts raw PCM16 little-endian bytes to int16 samples.
func Int16FromBytes(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// BytesFromInt16 converts int16 samples to raw PCM16 little-endian bytes.
func BytesFromInt16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Float32FromInt16 scales int16 samples into [-1, 1).
func Float32FromInt16(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Resample converts mono samples between rates using linear interpolation.
// Good enough for speech; devices that cannot open at the requested rate go
// through here.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	out := make([]float32, newLen)

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + frac*(samples[idx+1]-samples[idx])
	}
	return out
}
