package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

const currentJSON = `{
  "coord": {"lon": -79.4, "lat": 43.7},
  "weather": [{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"}],
  "main": {"temp": 4.5, "feels_like": 1.2, "temp_min": 2.0, "temp_max": 6.1, "humidity": 81},
  "wind": {"speed": 5.0, "gust": 9.0},
  "dt": 1704124800,
  "sys": {"sunrise": 1704112800, "sunset": 1704145200},
  "timezone": -18000,
  "name": "Toronto",
  "cod": 200
}`

const forecastJSON = `{
  "cod": "200",
  "list": [
    {"dt": 1704135600, "main": {"temp": 5.0}, "weather": [{"description": "light rain", "icon": "10d"}], "wind": {"speed": 4.0}, "pop": 0.8},
    {"dt": 1704146400, "main": {"temp": 3.0}, "weather": [{"description": "clear sky", "icon": "01n"}], "wind": {"speed": 3.0}, "pop": 0}
  ],
  "city": {"name": "Toronto", "timezone": -18000}
}`

const airJSON = `{"list": [{"main": {"aqi": 4}}]}`

func testConfig() ClientConfig {
	return ClientConfig{
		Timeout:        time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		Threshold:      3,
		BreakerTimeout: time.Minute,
	}
}

func weatherServer(t *testing.T, air int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/data/2.5/weather", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "secret" || r.URL.Query().Get("q") != "Toronto,CA" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(currentJSON))
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forecastJSON))
	})
	mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, r *http.Request) {
		if air != http.StatusOK {
			w.WriteHeader(air)
			return
		}
		w.Write([]byte(airJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := weatherServer(t, http.StatusOK)
	c := NewOpenWeatherClient("secret", srv.URL, "metric", testConfig(), nil)

	p, err := c.Fetch(context.Background(), "Toronto,CA")
	if err != nil {
		t.Fatal(err)
	}
	if *p.Current.Temp != 4.5 || *p.Current.Condition != "light rain" || p.Current.Icon != "10d" {
		t.Errorf("unexpected current conditions %+v", p.Current)
	}
	if len(p.Forecast) != 2 || *p.Forecast[0].Pop != 0.8 {
		t.Errorf("unexpected forecast %+v", p.Forecast)
	}
	if p.Forecast[1].WindGust != nil {
		t.Error("expected missing gust to stay nil")
	}
	if p.AirQuality == nil || p.AirQuality.AQI != 4 || p.AirQuality.Description != "poor" {
		t.Errorf("unexpected air quality %+v", p.AirQuality)
	}

	s, err := normalize.FromProvider(p, p.Location())
	if err != nil {
		t.Fatal(err)
	}
	if *s.Wind != 18 {
		t.Errorf("expected wind converted to 18 km/h, got %v", *s.Wind)
	}
	if _, offset := s.Local.Zone(); offset != -18000 {
		t.Errorf("expected provider offset, got %d", offset)
	}
}

func TestFetchWithoutAirQuality(t *testing.T) {
	srv := weatherServer(t, http.StatusNotFound)
	c := NewOpenWeatherClient("secret", srv.URL, "metric", testConfig(), nil)

	p, err := c.Fetch(context.Background(), "Toronto,CA")
	if err != nil {
		t.Fatal(err)
	}
	if p.AirQuality != nil {
		t.Error("expected air quality to be missing")
	}
}

func countingServer(t *testing.T, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGetWithRetryServerError(t *testing.T) {
	srv, hits := countingServer(t, http.StatusInternalServerError)
	c := NewBaseClient("test", testConfig(), nil)

	_, err := c.GetWithRetry(context.Background(), srv.URL)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", perr.Status)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestGetWithRetryClientErrorIsNotRetried(t *testing.T) {
	srv, hits := countingServer(t, http.StatusNotFound)
	c := NewBaseClient("test", testConfig(), nil)

	_, err := c.GetWithRetry(context.Background(), srv.URL)
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 ProviderError, got %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv, hits := countingServer(t, http.StatusBadRequest)
	c := NewBaseClient("test", testConfig(), nil)

	for i := 0; i < 3; i++ {
		c.GetWithRetry(context.Background(), srv.URL)
	}
	before := atomic.LoadInt32(hits)

	_, err := c.GetWithRetry(context.Background(), srv.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Errorf("expected ProviderError, got %T", err)
	}
	if atomic.LoadInt32(hits) != before {
		t.Error("open breaker should not reach the server")
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := weatherServer(t, http.StatusOK)
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	c := NewBaseClient("test", cfg, nil)

	if _, err := c.GetWithRetry(context.Background(), srv.URL+"/data/2.5/forecast"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.GetWithRetry(ctx, srv.URL+"/data/2.5/forecast")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected rate limit ProviderError, got %v", err)
	}
}
