// Package observability exports Prometheus metrics for the pipeline.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	composeDuration  prometheus.Histogram
	overflows        prometheus.Counter
	cycles           *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	cbState          *prometheus.GaugeVec
	ledgerRecords    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinkweather_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pinkweather_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinkweather_cache_hits_total",
			Help: "Total provider response cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinkweather_cache_misses_total",
			Help: "Total provider response cache misses.",
		}),
		composeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinkweather_compose_duration_seconds",
			Help:    "Time spent composing and laying out one narrative.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinkweather_narrative_overflow_total",
			Help: "Narratives whose layout exceeded the display box.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinkweather_device_cycles_total",
			Help: "Device refresh cycles by final state.",
		}, []string{"state"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pinkweather_provider_requests_total",
			Help: "Weather provider requests by outcome.",
		}, []string{"provider", "outcome"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pinkweather_cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		ledgerRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pinkweather_ledger_records",
			Help: "Days currently held by the history ledger.",
		}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.composeDuration,
		m.overflows,
		m.cycles,
		m.providerRequests,
		m.cbState,
		m.ledgerRecords,
	)
	return m
}

// Registry exposes the private registry so tests can gather from it.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) Composed(d time.Duration, overflow bool) {
	if m == nil {
		return
	}
	m.composeDuration.Observe(d.Seconds())
	if overflow {
		m.overflows.Inc()
	}
}

func (m *Metrics) Cycle(state string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(state).Inc()
}

func (m *Metrics) ProviderRequest(provider string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}

func (m *Metrics) LedgerRecords(n int) {
	if m == nil {
		return
	}
	m.ledgerRecords.Set(float64(n))
}
