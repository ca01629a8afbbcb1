// Package metrics exposes Prometheus collectors for the site generator.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters.
const (
	OutcomeSuccess  = "success"
	OutcomeNoResult = "no_result"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

var (
	scrapesTotal               *prometheus.CounterVec
	headshotResolutionsTotal   *prometheus.CounterVec
	headshotStrategyDuration   *prometheus.HistogramVec
	contentGenerationsTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitegen_scrapes_total",
				Help: "Total number of profile scrapes, labeled by status.",
			},
			[]string{"status"},
		)

		headshotResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitegen_headshot_resolutions_total",
				Help: "Headshot strategy attempts, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		headshotStrategyDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitegen_headshot_strategy_duration_seconds",
				Help:    "Histogram of headshot strategy latencies, labeled by strategy.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"strategy"},
		)

		contentGenerationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitegen_content_generations_total",
				Help: "Total number of content generations, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape increments the scrape counter for the given status.
func ObserveScrape(status string) {
	Init()
	scrapesTotal.WithLabelValues(status).Inc()
}

// ObserveHeadshotAttempt records one strategy attempt and its latency.
func ObserveHeadshotAttempt(strategy, outcome string, duration time.Duration) {
	Init()
	headshotResolutionsTotal.WithLabelValues(strategy, outcome).Inc()
	headshotStrategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveContentGeneration increments the generation counter.
func ObserveContentGeneration(outcome string) {
	Init()
	contentGenerationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
