package pcm

import (
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"clamped high", 3.2, 32767},
		{"clamped low", -7, -32768},
		{"nan", float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Encode([]float32{tt.in})
			if len(out) != 2 {
				t.Fatalf("expected 2 bytes, got %d", len(out))
			}
			got := Int16FromBytes(out)[0]
			if got != tt.want {
				t.Errorf("Encode(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeLittleEndian(t *testing.T) {
	out := Encode([]float32{-1})
	if out[0] != 0x00 || out[1] != 0x80 {
		t.Errorf("expected little-endian 0x8000, got % x", out)
	}
}

func TestEncodeBlob(t *testing.T) {
	blob := EncodeBlob(make([]float32, 4096))
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("unexpected mime type %q", blob.MIMEType)
	}
	if len(blob.Data) != 8192 {
		t.Errorf("expected 8192 bytes, got %d", len(blob.Data))
	}
}

func TestDecode(t *testing.T) {
	data := BytesFromInt16([]int16{0, 16384, -32768, 32767})
	buf := Decode(data, OutputSampleRate, 1)

	if buf.Channels != 1 || buf.SampleRate != OutputSampleRate {
		t.Fatalf("unexpected buffer format: %d ch @ %d Hz", buf.Channels, buf.SampleRate)
	}
	if buf.Len() != 4 {
		t.Fatalf("expected 4 frames, got %d", buf.Len())
	}

	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	for i, w := range want {
		if buf.Data[0][i] != w {
			t.Errorf("sample %d = %v, want %v", i, buf.Data[0][i], w)
		}
	}
}

func TestDecodeTruncatesPartialSamples(t *testing.T) {
	// 5 bytes: two whole samples and a stray byte
	buf := Decode([]byte{1, 0, 2, 0, 9}, OutputSampleRate, 1)
	if buf.Len() != 2 {
		t.Errorf("expected 2 frames, got %d", buf.Len())
	}

	// Stereo with a dangling left sample
	buf = Decode(BytesFromInt16([]int16{1, 2, 3}), OutputSampleRate, 2)
	if buf.Len() != 1 {
		t.Errorf("expected 1 stereo frame, got %d", buf.Len())
	}
	if buf.Data[1][0] != 2.0/32768.0 {
		t.Errorf("unexpected right channel sample %v", buf.Data[1][0])
	}
}

func TestDecodeEmpty(t *testing.T) {
	buf := Decode(nil, OutputSampleRate, 1)
	if buf.Len() != 0 || buf.Duration() != 0 {
		t.Errorf("expected empty buffer, got len=%d dur=%v", buf.Len(), buf.Duration())
	}
}

func TestDuration(t *testing.T) {
	buf := Decode(make([]byte, 48000), OutputSampleRate, 1) // 24000 samples
	if buf.Duration() != 1.0 {
		t.Errorf("expected 1s, got %v", buf.Duration())
	}
}

func TestRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 0.999, -0.999}
	buf := Decode(Encode(in), InputSampleRate, 1)

	for i, s := range in {
		if diff := math.Abs(float64(buf.Data[0][i] - s)); diff > 1.0/16384 {
			t.Errorf("sample %d drifted: in=%v out=%v", i, s, buf.Data[0][i])
		}
	}
}

func TestInterleaved(t *testing.T) {
	raw := BytesFromInt16([]int16{100, -100, 200, -200})
	buf := Decode(raw, OutputSampleRate, 2)
	out := buf.Interleaved()
	got := Int16FromBytes(out)
	want := []int16{100, -100, 200, -200}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(i) / 480
	}

	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(out))
	}

	same := Resample(in, 16000, 16000)
	if len(same) != len(in) {
		t.Errorf("same-rate resample changed length")
	}
}
