// Package metrics exposes Prometheus collectors for the insight service.
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

var (
	fetchTotal             *prometheus.CounterVec
	fetchDurationSeconds   prometheus.Histogram
	oracleCallsTotal       *prometheus.CounterVec
	oracleDurationSeconds  *prometheus.HistogramVec
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDurationSec *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteiq_fetch_total",
				Help: "Total page fetches, labeled by result.",
			},
			[]string{"result"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "siteiq_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
		)

		oracleCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteiq_oracle_calls_total",
				Help: "Total oracle calls, labeled by operation and result.",
			},
			[]string{"op", "result"},
		)

		oracleDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteiq_oracle_duration_seconds",
				Help:    "Histogram of oracle call latencies, labeled by operation.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"op"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveFetch records the outcome and latency of a page fetch.
// Safe to call before Init; the observation is then discarded.
func ObserveFetch(ok bool, dur time.Duration) {
	if fetchTotal == nil {
		return
	}
	fetchTotal.WithLabelValues(result(ok)).Inc()
	fetchDurationSeconds.Observe(dur.Seconds())
}

// ObserveOracleCall records the outcome and latency of an oracle call.
// Safe to call before Init; the observation is then discarded.
func ObserveOracleCall(op string, ok bool, dur time.Duration) {
	if oracleCallsTotal == nil {
		return
	}
	oracleCallsTotal.WithLabelValues(op, result(ok)).Inc()
	oracleDurationSeconds.WithLabelValues(op).Observe(dur.Seconds())
}

// ObserveHTTPRequest records a completed HTTP request.
// Safe to call before Init; the observation is then discarded.
func ObserveHTTPRequest(method, route string, status int, dur time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSec.WithLabelValues(method, route).Observe(dur.Seconds())
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
