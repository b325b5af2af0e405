package audioio

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestCaptureArgs(t *testing.T) {
	cfg := DefaultCaptureConfig()

	args, err := captureArgs("linux", cfg)
	if err != nil {
		t.Fatalf("captureArgs failed: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f pulse -i default", "-ac 1", "-ar 16000", "-f s16le -"} {
		if !strings.Contains(joined, want) {
			t.Errorf("linux args %q missing %q", joined, want)
		}
	}

	cfg.Device = ":1"
	args, err = captureArgs("darwin", cfg)
	if err != nil {
		t.Fatalf("captureArgs failed: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "-f avfoundation -i :1") {
		t.Errorf("darwin args missing device: %v", args)
	}

	if _, err := captureArgs("plan9", cfg); err == nil {
		t.Error("Expected error for unsupported platform")
	}
}

func TestPlaybackArgs(t *testing.T) {
	joined := strings.Join(playbackArgs(DefaultPlaybackConfig()), " ")
	for _, want := range []string{"-nodisp", "-f s16le", "-ar 24000", "-ac 1", "-i pipe:0"} {
		if !strings.Contains(joined, want) {
			t.Errorf("playback args %q missing %q", joined, want)
		}
	}
}

func withMissingTools(t *testing.T) {
	t.Helper()
	orig := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() { lookPath = orig })
}

func TestExecSource_MissingFFmpeg(t *testing.T) {
	withMissingTools(t)

	src := NewExecSource(DefaultCaptureConfig(), nil)
	err := src.Start(context.Background())
	if !IsDeviceUnavailable(err) {
		t.Fatalf("Expected device unavailable, got %v", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("Expected exec.ErrNotFound cause, got %v", err)
	}
	if src.Stats().Running {
		t.Error("Source should not be running")
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop on idle source failed: %v", err)
	}
}

func TestExecSink_MissingFFplay(t *testing.T) {
	withMissingTools(t)

	sink := NewExecSink(DefaultPlaybackConfig(), nil)
	if err := sink.Start(context.Background()); !IsDeviceUnavailable(err) {
		t.Fatalf("Expected device unavailable, got %v", err)
	}
	if err := sink.Write(context.Background(), AudioChunk{}); err == nil {
		t.Error("Expected write to fail on idle sink")
	}
}

func TestFactory(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.Backend = BackendMock
	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("Expected mock source, got %s", src.Name())
	}

	cfg.Backend = BackendAuto
	src, err = NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if src.Name() != "exec" {
		t.Errorf("Expected exec source for auto, got %s", src.Name())
	}

	cfg.Backend = "alsa"
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("Expected error for unsupported backend")
	}

	cfg.Backend = BackendMock
	cfg.SampleRate = 0
	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("Expected error for invalid config")
	}
}
