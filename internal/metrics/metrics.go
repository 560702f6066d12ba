// Package metrics exposes Prometheus collectors for the NAV crawler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navcrawler_pages_total",
			Help: "Total number of pages fetched, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	crawlerRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navcrawler_fetch_retries_total",
			Help: "Total number of page fetch retries.",
		},
	)

	crawlerFetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navcrawler_fetch_duration_seconds",
			Help:    "Histogram of successful upstream fetch latencies.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	crawlerObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navcrawler_observations_total",
			Help: "Total number of observation upserts, labeled by result.",
		},
		[]string{"result"},
	)

	crawlerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navcrawler_runs_total",
			Help: "Total number of crawl runs, labeled by final status.",
		},
		[]string{"status"},
	)

	crawlerCursorEntityIndex = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navcrawler_cursor_entity_index",
			Help: "Entity index most recently written to the progress cursor.",
		},
	)

	crawlerCursorPage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navcrawler_cursor_page",
			Help: "Page most recently written to the progress cursor.",
		},
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for the given outcome.
func ObservePage(outcome string) {
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	crawlerRetriesTotal.Inc()
}

// ObserveFetchDuration records the latency of a successful fetch.
func ObserveFetchDuration(d time.Duration) {
	if d <= 0 {
		return
	}
	crawlerFetchDurationSeconds.Observe(d.Seconds())
}

// ObserveObservations records written and failed upserts.
func ObserveObservations(written, failed int) {
	if written > 0 {
		crawlerObservationsTotal.WithLabelValues("written").Add(float64(written))
	}
	if failed > 0 {
		crawlerObservationsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// ObserveRun increments the run counter for the final status.
func ObserveRun(status string) {
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// SetCursor mirrors the persisted cursor position.
func SetCursor(entityIndex, page int) {
	crawlerCursorEntityIndex.Set(float64(entityIndex))
	crawlerCursorPage.Set(float64(page))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
