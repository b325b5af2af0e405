package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-concierge/pkg/capture"
	"github.com/teslashibe/go-concierge/pkg/hub"
	"github.com/teslashibe/go-concierge/pkg/live"
	"github.com/teslashibe/go-concierge/pkg/session"
	"github.com/teslashibe/go-concierge/pkg/transcript"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the session state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.session.Status())
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	err := s.session.Connect(c.UserContext())
	switch {
	case err == nil:
		return c.JSON(s.session.Status())
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": session.MicrophoneErrorMessage})
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case live.IsTransport(err):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": session.ConnectionErrorMessage})
	default:
		s.logger.Error("connect failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": session.ConnectionErrorMessage})
	}
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if err := s.session.Disconnect(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.session.Status())
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	s.session.Mute()
	return c.JSON(s.session.Status())
}

func (s *Server) handleUnmute(c *fiber.Ctx) error {
	s.session.Unmute()
	return c.JSON(s.session.Status())
}

// handleMessages returns the conversation log
func (s *Server) handleMessages(c *fiber.Ctx) error {
	msgs := s.session.Messages()
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	return c.JSON(msgs)
}

// handleBookings lists bookings through the booking store, which falls
// back to the local mirror when the reservation service is down.
func (s *Server) handleBookings(c *fiber.Ctx) error {
	bookings, err := s.store.List(c.UserContext())
	if err != nil {
		s.logger.Error("list bookings failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to load bookings"})
	}
	if bookings == nil {
		return c.JSON([]any{})
	}
	return c.JSON(bookings)
}

// handleEventsWS streams session events, starting with the current state.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	st := s.session.Status()
	initial, err := json.Marshal(session.Event{Type: session.EventState, Status: &st})
	if err != nil {
		c.Close()
		return
	}
	hub.NewClient(s.events, c, initial).Run()
}
