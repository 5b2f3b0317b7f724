// Package metrics defines the Prometheus collectors exported on /metrics.
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
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movierec_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "movierec_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// AuthAttempts counts register, login and token checks by outcome.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_auth_attempts_total",
			Help: "Authentication attempts by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// RecordAPIRequest observes one finished request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAuth counts one authentication outcome.
func RecordAuth(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	AuthAttempts.WithLabelValues(operation, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
