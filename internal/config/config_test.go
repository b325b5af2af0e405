package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("OPENWEATHER_API_KEY", "")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Live.APIKey != "test-key" {
		t.Errorf("expected api key from GOOGLE_API_KEY, got %q", cfg.Live.APIKey)
	}
	if cfg.Live.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, cfg.Live.Model)
	}
	if cfg.Live.Voice != DefaultVoice {
		t.Errorf("expected voice %q, got %q", DefaultVoice, cfg.Live.Voice)
	}
	if cfg.Booking.Mirror != MirrorFile {
		t.Errorf("expected file mirror, got %q", cfg.Booking.Mirror)
	}
	if cfg.Booking.MirrorKey != DefaultMirrorKey {
		t.Errorf("expected mirror key %q, got %q", DefaultMirrorKey, cfg.Booking.MirrorKey)
	}
	if cfg.Audio.VolumeInterval != time.Second/60 {
		t.Errorf("expected volume interval 1/60s, got %v", cfg.Audio.VolumeInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "k")
	t.Setenv("CONCIERGE_BOOKING_MIRROR", "redis")
	t.Setenv("CONCIERGE_BOOKING_REDIS_ADDR", "redis:6380")
	t.Setenv("CONCIERGE_LOG_LEVEL", "debug")

	cfg, err := LoadFrom(viper.New())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Booking.Mirror != MirrorRedis {
		t.Errorf("expected redis mirror, got %q", cfg.Booking.Mirror)
	}
	if cfg.Booking.RedisAddr != "redis:6380" {
		t.Errorf("expected redis addr override, got %q", cfg.Booking.RedisAddr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Live:    LiveConfig{APIKey: "k", Model: DefaultModel},
			Audio:   AudioConfig{VolumeInterval: time.Second / 60},
			Booking: BookingConfig{Mirror: MirrorFile, MirrorPath: "/tmp/b.json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.Live.APIKey = "" }, true},
		{"unknown mirror", func(c *Config) { c.Booking.Mirror = "s3" }, true},
		{"redis without addr", func(c *Config) { c.Booking.Mirror = MirrorRedis }, true},
		{"zero volume interval", func(c *Config) { c.Audio.VolumeInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
