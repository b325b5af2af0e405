// Package config loads go-concierge configuration.
//
// Values are layered: built-in defaults, then an optional concierge.yaml
// (working directory or ./config), then environment variables. Every key can
// be set as CONCIERGE_<SECTION>_<KEY>; the API keys also honour the plain
// GOOGLE_API_KEY and OPENWEATHER_API_KEY variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultListenAddr   = ":8080"
	DefaultModel        = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice        = "Kore"
	DefaultBookingAPI   = "https://voiceai-api.vercel.app/api"
	DefaultMirrorKey    = "golden_table_bookings"
	DefaultWeatherCity  = "India"
	DefaultAudioBackend = "auto"
)

// Mirror kinds.
const (
	MirrorFile  = "file"
	MirrorRedis = "redis"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Live    LiveConfig    `mapstructure:"live"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Booking BookingConfig `mapstructure:"booking"`
	Weather WeatherConfig `mapstructure:"weather"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig configures the UI HTTP server.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	StaticDir  string `mapstructure:"static_dir"`
}

// LiveConfig configures the remote conversational session.
type LiveConfig struct {
	APIKey   string `mapstructure:"api_key"`
	URL      string `mapstructure:"url"`
	Model    string `mapstructure:"model"`
	Voice    string `mapstructure:"voice"`
	Greeting string `mapstructure:"greeting"`
}

// AudioConfig selects the audio backend and devices.
type AudioConfig struct {
	Backend        string        `mapstructure:"backend"`
	InputDevice    string        `mapstructure:"input_device"`
	OutputDevice   string        `mapstructure:"output_device"`
	VolumeInterval time.Duration `mapstructure:"volume_interval"`
}

// BookingConfig configures the reservation service and the local mirror.
type BookingConfig struct {
	APIURL     string `mapstructure:"api_url"`
	Mirror     string `mapstructure:"mirror"`
	MirrorPath string `mapstructure:"mirror_path"`
	MirrorKey  string `mapstructure:"mirror_key"`
	RedisAddr  string `mapstructure:"redis_addr"`
}

// WeatherConfig configures the forecast lookup.
type WeatherConfig struct {
	APIKey string `mapstructure:"api_key"`
	City   string `mapstructure:"city"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from defaults, file and environment.
func Load() (Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration using the given viper instance.
// Tests pass a fresh instance with values already set.
func LoadFrom(v *viper.Viper) (Config, error) {
	setDefaults(v)

	v.SetConfigName("concierge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CONCIERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("live.api_key", "CONCIERGE_LIVE_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("weather.api_key", "CONCIERGE_WEATHER_API_KEY", "OPENWEATHER_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", DefaultListenAddr)
	v.SetDefault("server.static_dir", "./web")

	v.SetDefault("live.url", "")
	v.SetDefault("live.model", DefaultModel)
	v.SetDefault("live.voice", DefaultVoice)
	v.SetDefault("live.greeting", "Hello Bella, I am ready to book.")

	v.SetDefault("audio.backend", DefaultAudioBackend)
	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.output_device", "")
	v.SetDefault("audio.volume_interval", time.Second/60)

	v.SetDefault("booking.api_url", DefaultBookingAPI)
	v.SetDefault("booking.mirror", MirrorFile)
	v.SetDefault("booking.mirror_path", defaultMirrorPath())
	v.SetDefault("booking.mirror_key", DefaultMirrorKey)
	v.SetDefault("booking.redis_addr", "localhost:6379")

	v.SetDefault("weather.city", DefaultWeatherCity)

	v.SetDefault("log.level", "info")
}

// defaultMirrorPath returns ~/.concierge/bookings.json, or a relative path
// when the home directory is unknown.
func defaultMirrorPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".concierge", "bookings.json")
	}
	return filepath.Join(home, ".concierge", "bookings.json")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Live.APIKey == "" {
		return errors.New("config: live.api_key is required (set GOOGLE_API_KEY)")
	}
	if c.Live.Model == "" {
		return errors.New("config: live.model is required")
	}
	switch c.Booking.Mirror {
	case MirrorFile:
		if c.Booking.MirrorPath == "" {
			return errors.New("config: booking.mirror_path is required for the file mirror")
		}
	case MirrorRedis:
		if c.Booking.RedisAddr == "" {
			return errors.New("config: booking.redis_addr is required for the redis mirror")
		}
	default:
		return fmt.Errorf("config: unknown booking.mirror %q", c.Booking.Mirror)
	}
	if c.Audio.VolumeInterval <= 0 {
		return fmt.Errorf("config: audio.volume_interval must be positive, got %v", c.Audio.VolumeInterval)
	}
	return nil
}
