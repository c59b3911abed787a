// Package metrics exposes Prometheus instrumentation for the session engine
// and the HTTP API.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironsession_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ironsession_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Session engine metrics
	setsLoggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironsession_sets_logged_total",
			Help: "LogSet calls by result (accepted, rest_active, duplicate, out_of_order, unknown_exercise, no_session)",
		},
		[]string{"result"},
	)

	setWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironsession_set_writes_total",
			Help: "Per-set background writes by outcome",
		},
		[]string{"outcome"},
	)

	setsFlushedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ironsession_sets_flushed_total",
			Help: "Unconfirmed sets written by the bulk flush at finish",
		},
	)

	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ironsession_session_transitions_total",
			Help: "Session lifecycle transitions (started, recovered, abandoned, finished)",
		},
		[]string{"transition"},
	)

	activeCoordinators = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ironsession_active_coordinators",
			Help: "Number of live session coordinators",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			setsLoggedTotal,
			setWritesTotal,
			setsFlushedTotal,
			sessionTransitionsTotal,
			activeCoordinators,
		)
	})
}

// Handler returns an HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSetLogged counts a LogSet call by its result.
func RecordSetLogged(result string) {
	setsLoggedTotal.WithLabelValues(result).Inc()
}

// RecordSetWrite counts a per-set write by outcome ("confirmed", "duplicate", "failed").
func RecordSetWrite(outcome string) {
	setWritesTotal.WithLabelValues(outcome).Inc()
}

// RecordFlush counts rows written by a finish-time flush.
func RecordFlush(rows int64) {
	setsFlushedTotal.Add(float64(rows))
}

// RecordTransition counts a session lifecycle transition.
func RecordTransition(transition string) {
	sessionTransitionsTotal.WithLabelValues(transition).Inc()
}

// SetActiveCoordinators sets the live coordinator gauge.
func SetActiveCoordinators(n int) {
	activeCoordinators.Set(float64(n))
}
