// Concierge - voice reservation assistant for The Golden Table.
// Streams microphone audio to Gemini Live, plays the spoken replies and
// books tables through the reservation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/teslashibe/go-concierge/internal/config"
	"github.com/teslashibe/go-concierge/internal/log"
	"github.com/teslashibe/go-concierge/pkg/audioio"
	"github.com/teslashibe/go-concierge/pkg/booking"
	"github.com/teslashibe/go-concierge/pkg/live"
	"github.com/teslashibe/go-concierge/pkg/session"
	"github.com/teslashibe/go-concierge/pkg/tools"
	"github.com/teslashibe/go-concierge/pkg/weather"
	"github.com/teslashibe/go-concierge/pkg/web"
)

type flags struct {
	addr      string
	logLevel  string
	backend   string
	mirror    string
	autoStart bool
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg, f)

	log.Init(cfg.Log.Level)
	logger := log.L()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f.autoStart, logger); err != nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line overrides for the loaded configuration.
func parseFlags() flags {
	var f flags
	flag.StringVar(&f.addr, "addr", "", "Listen address (overrides server.listen_addr)")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.backend, "audio", "", "Audio backend: auto, exec, mock")
	flag.StringVar(&f.mirror, "mirror", "", "Local booking mirror: file, redis")
	flag.BoolVar(&f.autoStart, "connect", false, "Start a conversation immediately")
	flag.Parse()
	return f
}

func applyFlags(cfg *config.Config, f flags) {
	if f.addr != "" {
		cfg.Server.ListenAddr = f.addr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.backend != "" {
		cfg.Audio.Backend = f.backend
	}
	if f.mirror != "" {
		cfg.Booking.Mirror = f.mirror
	}
}

func run(ctx context.Context, cfg config.Config, autoStart bool, logger *slog.Logger) error {
	mirror, closeMirror, err := newMirror(ctx, cfg.Booking)
	if err != nil {
		return err
	}
	defer closeMirror()

	store := booking.NewTieredStore(booking.NewRemoteClient(cfg.Booking.APIURL), mirror, logger)

	var forecast weather.Forecaster = weather.Simulator{}
	if cfg.Weather.APIKey != "" {
		forecast = weather.NewOpenWeather(cfg.Weather.APIKey, cfg.Weather.City, logger)
	} else {
		logger.Info("no weather API key, forecasts are simulated")
	}
	dispatcher := tools.NewDispatcher(store, forecast, logger)

	capCfg := audioio.DefaultCaptureConfig()
	capCfg.Backend = audioio.Backend(cfg.Audio.Backend)
	capCfg.Device = cfg.Audio.InputDevice
	playCfg := audioio.DefaultPlaybackConfig()
	playCfg.Backend = audioio.Backend(cfg.Audio.Backend)
	playCfg.Device = cfg.Audio.OutputDevice

	sess, err := session.New(session.Config{
		Live: live.Config{
			APIKey: cfg.Live.APIKey,
			URL:    cfg.Live.URL,
			Model:  cfg.Live.Model,
			Voice:  cfg.Live.Voice,
		},
		Greeting:       cfg.Live.Greeting,
		VolumeInterval: cfg.Audio.VolumeInterval,
	}, session.Deps{
		Dialer:     live.NewWSDialer(logger),
		NewSource:  func() (audioio.Source, error) { return audioio.NewSource(capCfg, logger) },
		NewSink:    func() (audioio.Sink, error) { return audioio.NewSink(playCfg, logger) },
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := web.NewServer(web.Config{
		Addr:      cfg.Server.ListenAddr,
		StaticDir: cfg.Server.StaticDir,
	}, sess, store, logger)

	if autoStart {
		go func() {
			if err := sess.Connect(ctx); err != nil {
				logger.Error("auto connect failed", "error", err)
			}
		}()
	}

	logger.Info("concierge ready",
		"addr", cfg.Server.ListenAddr,
		"model", cfg.Live.Model,
		"mirror", cfg.Booking.Mirror,
		"audio", cfg.Audio.Backend,
	)
	return srv.ListenAndServe(ctx)
}

// newMirror builds the local booking copy selected in cfg.
func newMirror(ctx context.Context, cfg config.BookingConfig) (booking.Mirror, func(), error) {
	switch cfg.Mirror {
	case config.MirrorRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis mirror at %s: %w", cfg.RedisAddr, err)
		}
		return booking.NewRedisMirror(rdb, cfg.MirrorKey), func() { rdb.Close() }, nil
	default:
		m, err := booking.NewFileMirror(cfg.MirrorPath, cfg.MirrorKey)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
}
