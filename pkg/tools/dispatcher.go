package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-concierge/pkg/booking"
	"github.com/teslashibe/go-concierge/pkg/metrics"
	"github.com/teslashibe/go-concierge/pkg/weather"
)

// Result messages returned to the assistant.
const (
	MsgBookingCreated   = "Booking created successfully."
	MsgBookingCancelled = "Booking cancelled."
	MsgBookingNotFound  = "Booking ID not found."
	MsgUnknownFunction  = "Unknown function"
	MsgExecutionFailed  = "Failed to execute tool"
)

// Result answers exactly one Request and carries its id.
type Result struct {
	ID      string
	Name    string
	Payload map[string]any
}

// Dispatcher executes tool calls against the booking store and the
// weather forecaster.
type Dispatcher struct {
	store    booking.Store
	forecast weather.Forecaster
	logger   *slog.Logger
	tracker  *Tracker

	mu        sync.Mutex
	onRefresh func()

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store booking.Store, forecast weather.Forecaster, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if forecast == nil {
		forecast = weather.Simulator{}
	}
	return &Dispatcher{
		store:    store,
		forecast: forecast,
		logger:   logger.With("component", "tools"),
		tracker:  NewTracker(),
	}
}

// OnRefresh sets the hook fired after the booking list may have changed.
func (d *Dispatcher) OnRefresh(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRefresh = fn
}

// Tracker returns the per-call state log.
func (d *Dispatcher) Tracker() *Tracker {
	return d.tracker
}

func (d *Dispatcher) refresh() {
	d.mu.Lock()
	fn := d.onRefresh
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Dispatch runs a call to completion and returns its result. It never
// panics and always returns a result with req.ID.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res Result) {
	d.tracker.set(req.ID, StateReceived)
	start := time.Now()
	outcome := "ok"

	metrics.ToolCallsInFlight.Inc()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool call panicked", "call_id", req.ID, "name", req.Name, "panic", r)
			res = errorResult(req, MsgExecutionFailed)
			outcome = "panic"
		}
		metrics.ToolCallsInFlight.Dec()
		label := metricName(req.Name)
		metrics.ToolCallsTotal.WithLabelValues(label, outcome).Inc()
		metrics.ToolCallDuration.WithLabelValues(label).Observe(float64(time.Since(start).Milliseconds()))
		d.tracker.set(req.ID, StateResponded)
	}()

	call, err := Parse(req)
	if err != nil {
		outcome = "invalid"
		d.logger.Warn("rejected tool call", "call_id", req.ID, "name", req.Name, "error", err)
		return errorResult(req, err.Error())
	}

	d.tracker.set(req.ID, StateExecuting)
	d.logger.Info("tool call", "call_id", req.ID, "name", req.Name)

	payload, err := d.execute(ctx, call)
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrUnknownTool) {
			outcome = "unknown"
		}
		d.logger.Warn("tool call failed", "call_id", req.ID, "name", req.Name, "error", err)
	}
	return Result{ID: req.ID, Name: req.Name, Payload: payload}
}

func (d *Dispatcher) execute(ctx context.Context, call Call) (map[string]any, error) {
	switch c := call.(type) {
	case CreateBookingCall:
		b, err := d.store.Create(ctx, c.Booking)
		if err != nil {
			return map[string]any{"error": failureMessage(err)}, err
		}
		d.refresh()
		return map[string]any{
			"status":    "success",
			"bookingId": b.BookingID,
			"message":   MsgBookingCreated,
		}, nil

	case CheckWeatherCall:
		return map[string]any{"condition": d.forecast.Forecast(ctx, c.Date)}, nil

	case CancelBookingCall:
		ok, err := d.store.Cancel(ctx, c.BookingID)
		d.refresh()
		if err != nil {
			return map[string]any{"error": failureMessage(err)}, err
		}
		msg := MsgBookingNotFound
		if ok {
			msg = MsgBookingCancelled
		}
		return map[string]any{"success": ok, "message": msg}, nil

	case UnknownCall:
		return map[string]any{"error": MsgUnknownFunction}, fmt.Errorf("%w: %q", ErrUnknownTool, c.Function)

	default:
		return map[string]any{"error": MsgUnknownFunction}, fmt.Errorf("%w: %T", ErrUnknownTool, call)
	}
}

// metricName bounds label cardinality to the declared functions.
func metricName(name string) string {
	switch name {
	case NameCreateBooking, NameCheckWeather, NameCancelBooking:
		return name
	}
	return "other"
}

func failureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return MsgExecutionFailed
	}
	return err.Error()
}

func errorResult(req Request, msg string) Result {
	return Result{ID: req.ID, Name: req.Name, Payload: map[string]any{"error": msg}}
}

// DispatchAsync runs the call on its own goroutine and hands the result to
// reply exactly once.
func (d *Dispatcher) DispatchAsync(ctx context.Context, req Request, reply func(Result)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res := d.Dispatch(ctx, req)
		if reply != nil {
			reply(res)
		}
	}()
}

// Wait blocks until every asynchronous call has replied.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
