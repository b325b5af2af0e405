package session

import (
	"context"
	"errors"

	"github.com/teslashibe/go-concierge/pkg/live"
	"github.com/teslashibe/go-concierge/pkg/tools"
)

var errGoAway = errors.New("server is closing the session")

// loop is the single consumer of inbound messages and tool results for
// one connection. It exits when the stream ends or the connection is torn
// down.
func (s *Session) loop(c *connection) {
	stream := c.getStream()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-stream.Messages():
			if !ok {
				if c.ctx.Err() != nil {
					return
				}
				err := stream.Err()
				if err == nil {
					err = &live.TransportError{Op: "read", Err: errors.New("stream ended")}
				}
				s.fail(c, err)
				return
			}
			if !s.handle(c, msg) {
				return
			}
		case res := <-c.results:
			s.respond(c, res)
		}
	}
}

// handle applies one inbound message in a fixed order: tool calls,
// barge-in, audio, transcripts, end of turn. It reports false when the
// connection is finished.
func (s *Session) handle(c *connection, msg live.Message) bool {
	if c.ctx.Err() != nil {
		return false
	}

	for _, fc := range msg.ToolCalls {
		s.logger.Info("tool call", "call_id", fc.ID, "name", fc.Name)
		req := tools.Request{ID: fc.ID, Name: fc.Name, Args: fc.Args}
		// In-flight booking operations outlive a disconnect; only their
		// results are discarded.
		s.deps.Dispatcher.DispatchAsync(context.Background(), req, func(res tools.Result) {
			s.deliver(c, res)
		})
	}
	for _, id := range msg.Cancelled {
		s.logger.Info("tool call cancelled by server", "call_id", id)
	}

	if msg.Interrupted {
		c.scheduler.Interrupt()
	}
	for _, chunk := range msg.Audio {
		if _, err := c.scheduler.Enqueue(chunk); err != nil {
			s.logger.Debug("audio chunk not scheduled", "error", err)
		}
	}

	if msg.InputTranscript != "" {
		s.reconciler.AddUser(msg.InputTranscript)
	}
	if msg.OutputTranscript != "" {
		s.reconciler.AddAssistant(msg.OutputTranscript)
	}
	if msg.TurnComplete {
		s.reconciler.CompleteTurn()
	}

	if msg.GoAway {
		s.fail(c, &live.TransportError{Op: "goAway", Err: errGoAway})
		return false
	}
	return true
}

// deliver hands a tool result to the loop, or drops it if the connection
// is gone.
func (s *Session) deliver(c *connection, res tools.Result) {
	select {
	case <-c.ctx.Done():
		s.logger.Info("discarding tool result after disconnect", "call_id", res.ID, "name", res.Name)
		return
	default:
	}
	select {
	case c.results <- res:
	case <-c.ctx.Done():
		s.logger.Info("discarding tool result after disconnect", "call_id", res.ID, "name", res.Name)
	}
}

func (s *Session) respond(c *connection, res tools.Result) {
	if c.ctx.Err() != nil {
		s.logger.Info("discarding tool result after disconnect", "call_id", res.ID, "name", res.Name)
		return
	}
	err := c.getStream().SendToolResponse(live.FunctionResponse{
		ID:     res.ID,
		Name:   res.Name,
		Result: res.Payload,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Debug("tool result sent", "call_id", res.ID, "name", res.Name)
}
