// Package weather answers "what will the weather be on this date" for the
// concierge. Lookups never fail: anything the live forecast cannot answer
// falls back to a deterministic simulation.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-concierge/internal/httpc"
	"github.com/teslashibe/go-concierge/pkg/metrics"
)

// Conditions returned by the forecaster. Unmapped live conditions are
// passed through lowercased (e.g. "snow", "mist").
const (
	Sunny  = "sunny"
	Cloudy = "cloudy"
	Rainy  = "rainy"
)

const (
	// DefaultCity is the restaurant's forecast location.
	DefaultCity = "India"

	// DefaultBaseURL is the OpenWeather API root.
	DefaultBaseURL = "https://api.openweathermap.org"
)

var errNoForecast = errors.New("weather: date not in forecast")

// Forecaster returns a condition for a YYYY-MM-DD date.
type Forecaster interface {
	Forecast(ctx context.Context, date string) string
}

// Simulate derives a stable condition from the date string alone.
func Simulate(date string) string {
	sum := 0
	for _, r := range date {
		sum += int(r)
	}
	v := float64(sum%100) / 100
	switch {
	case v > 0.7:
		return Rainy
	case v > 0.4:
		return Cloudy
	default:
		return Sunny
	}
}

// Simulator is a Forecaster that only simulates.
type Simulator struct{}

// Forecast implements Forecaster.
func (Simulator) Forecast(_ context.Context, date string) string {
	metrics.WeatherSimulatedTotal.Inc()
	return Simulate(date)
}

// OpenWeather queries the OpenWeather 5-day forecast.
type OpenWeather struct {
	apiKey     string
	city       string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures OpenWeather.
type Option func(*OpenWeather)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(o *OpenWeather) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OpenWeather) { o.httpClient = c }
}

// NewOpenWeather creates a forecaster. An empty apiKey makes every lookup
// simulated.
func NewOpenWeather(apiKey, city string, logger *slog.Logger, opts ...Option) *OpenWeather {
	if city == "" {
		city = DefaultCity
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &OpenWeather{
		apiKey:     apiKey,
		city:       city,
		baseURL:    DefaultBaseURL,
		httpClient: httpc.Client,
		logger:     logger.With("component", "weather"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Forecast implements Forecaster.
func (o *OpenWeather) Forecast(ctx context.Context, date string) string {
	if o.apiKey == "" {
		o.logger.Debug("no OpenWeather key, simulating", "date", date)
		return Simulator{}.Forecast(ctx, date)
	}

	cond, err := o.lookup(ctx, date)
	if err != nil {
		if errors.Is(err, errNoForecast) {
			o.logger.Info("date outside forecast window, simulating", "date", date)
		} else {
			o.logger.Warn("weather lookup failed, simulating", "date", date, "error", err)
		}
		return Simulator{}.Forecast(ctx, date)
	}
	return cond
}

type forecastResponse struct {
	List []struct {
		DtTxt   string `json:"dt_txt"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

func (o *OpenWeather) lookup(ctx context.Context, date string) (string, error) {
	q := url.Values{}
	q.Set("q", o.city)
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/data/2.5/forecast?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather: status %d", resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", fmt.Errorf("weather: decode: %w", err)
	}

	for _, item := range fr.List {
		if !strings.HasPrefix(item.DtTxt, date) || len(item.Weather) == 0 {
			continue
		}
		return classify(item.Weather[0].Main), nil
	}
	return "", errNoForecast
}

func classify(main string) string {
	c := strings.ToLower(main)
	switch {
	case strings.Contains(c, "rain"), strings.Contains(c, "drizzle"):
		return Rainy
	case strings.Contains(c, "clear"):
		return Sunny
	case strings.Contains(c, "cloud"):
		return Cloudy
	default:
		return c
	}
}
