package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSimulateDeterministic(t *testing.T) {
	// code points sum to 496, 96/100 > 0.7
	if got := Simulate("2099-01-01"); got != Rainy {
		t.Errorf("Simulate(2099-01-01) = %q, want %q", got, Rainy)
	}
	for i := 0; i < 5; i++ {
		if Simulate("2099-01-01") != Simulate("2099-01-01") {
			t.Fatal("simulation is not deterministic")
		}
	}
}

func TestSimulateThresholds(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2099-01-01", Rainy},  // 496 -> 0.96
		{"2099-01-05", Sunny},  // 500 -> 0.00
		{"2099-09-29", Sunny},  // 514 -> 0.14
		{"9999-99-99", Cloudy}, // 546 -> 0.46
		{"", Sunny},
	}

	for _, tt := range tests {
		if got := Simulate(tt.date); got != tt.want {
			t.Errorf("Simulate(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestNoKeySimulates(t *testing.T) {
	o := NewOpenWeather("", "", nil)
	if got := o.Forecast(context.Background(), "2099-01-01"); got != Simulate("2099-01-01") {
		t.Errorf("Forecast = %q", got)
	}
}

func forecastServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/forecast" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "India" || q.Get("appid") != "k" || q.Get("units") != "metric" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const sampleForecast = `{"list":[
 {"dt_txt":"2025-06-01 09:00:00","weather":[{"main":"Clear"}]},
 {"dt_txt":"2025-06-02 09:00:00","weather":[{"main":"Drizzle"}]},
 {"dt_txt":"2025-06-03 09:00:00","weather":[{"main":"Clouds"}]},
 {"dt_txt":"2025-06-04 09:00:00","weather":[{"main":"Snow"}]}
]}`

func TestOpenWeatherMapping(t *testing.T) {
	srv := forecastServer(t, http.StatusOK, sampleForecast)
	o := NewOpenWeather("k", "", nil, WithBaseURL(srv.URL))

	tests := map[string]string{
		"2025-06-01": Sunny,
		"2025-06-02": Rainy,
		"2025-06-03": Cloudy,
		"2025-06-04": "snow",
		"2099-01-01": Simulate("2099-01-01"),
	}
	for date, want := range tests {
		if got := o.Forecast(context.Background(), date); got != want {
			t.Errorf("Forecast(%s) = %q, want %q", date, got, want)
		}
	}
}

func TestOpenWeatherFailureSimulates(t *testing.T) {
	srv := forecastServer(t, http.StatusUnauthorized, `{"message":"bad key"}`)
	o := NewOpenWeather("k", "India", nil, WithBaseURL(srv.URL))

	if got := o.Forecast(context.Background(), "2025-06-01"); got != Simulate("2025-06-01") {
		t.Errorf("Forecast = %q, want simulation", got)
	}
}
