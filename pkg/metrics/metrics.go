// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "concierge_session_state",
		Help: "1 for the current session state, 0 for the others",
	}, []string{"state"})
	PlaybackInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "concierge_playback_in_flight",
		Help: "Number of scheduled speech segments not yet finished",
	})
	ToolCallsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "concierge_tool_calls_in_flight",
		Help: "Number of tool calls currently executing",
	})
	HubClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "concierge_hub_clients",
		Help: "Number of connected UI event subscribers",
	})
)

// Counters
var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_sessions_total",
		Help: "Session connect attempts by outcome",
	}, []string{"outcome"})
	CaptureFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_capture_frames_total",
		Help: "Microphone frames by disposition (sent, dropped)",
	}, []string{"disposition"})
	PlaybackSegmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_playback_segments_total",
		Help: "Inbound speech chunks by outcome (scheduled, dropped)",
	}, []string{"outcome"})
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_tool_calls_total",
		Help: "Tool calls by function name and outcome",
	}, []string{"name", "outcome"})
	BookingFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_booking_fallbacks_total",
		Help: "Booking operations served by the local mirror after a remote failure",
	}, []string{"op"})
	WeatherSimulatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_weather_simulated_total",
		Help: "Forecasts answered by the deterministic simulation",
	})
)

// Histograms
var (
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concierge_tool_call_duration_ms",
		Help:    "Tool call execution time in milliseconds by function name",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"name"})
)

// SetSessionState marks state as the only active state label.
func SetSessionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}
