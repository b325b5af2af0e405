// Package web serves the concierge UI boundary: session control, the
// conversation log, bookings, live events and metrics.
package web

import (
	"context"
	"log/slog"
	"net"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-concierge/pkg/booking"
	"github.com/teslashibe/go-concierge/pkg/hub"
	"github.com/teslashibe/go-concierge/pkg/session"
	"github.com/teslashibe/go-concierge/pkg/transcript"
)

// Session is the part of session.Session the server drives.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Mute()
	Unmute()
	Status() session.Status
	Messages() []transcript.Message
	Subscribe(o session.Observer) (unsubscribe func())
}

// Config configures the server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// StaticDir is served at / when it exists. Optional.
	StaticDir string
}

// Server is the HTTP and websocket front end.
type Server struct {
	app     *fiber.App
	cfg     Config
	session Session
	store   booking.Store
	events  *hub.Hub
	logger  *slog.Logger
}

// NewServer creates a server for sess. Bookings are read through store.
func NewServer(cfg Config, sess Session, store booking.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		session: sess,
		store:   store,
		events:  hub.New("events", logger),
		logger:  logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Concierge",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			app.Static("/", cfg.StaticDir)
		}
	}

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/session", s.handleStatus)
	api.Post("/session/connect", s.handleConnect)
	api.Post("/session/disconnect", s.handleDisconnect)
	api.Post("/session/mute", s.handleMute)
	api.Post("/session/unmute", s.handleUnmute)
	api.Get("/messages", s.handleMessages)
	api.Get("/bookings", s.handleBookings)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the event hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Run starts the event hub and relays session events to it until ctx is
// cancelled. Serve or Listen must be called separately.
func (s *Server) Run(ctx context.Context) {
	bridge := session.NewChannelObserver(256)
	unsubscribe := s.session.Subscribe(bridge)

	go s.events.Run(ctx)
	go func() {
		<-ctx.Done()
		unsubscribe()
		bridge.Close()
	}()

	for e := range bridge.Events() {
		if err := s.events.BroadcastJSON(e); err != nil {
			s.logger.Warn("failed to encode event", "type", e.Type, "error", err)
		}
	}
}

// ListenAndServe runs the hub and serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}
