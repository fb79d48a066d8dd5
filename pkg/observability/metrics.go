// Package observability provides Prometheus metrics, health checks and
// the HTTP server that exposes them.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"persona", "kind", "status"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicebot_turn_duration_seconds",
			Help:    "End-to-end turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"persona", "kind"},
	)

	silentTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_silent_turns_total",
			Help: "Total number of voice turns with no speech detected",
		},
		[]string{"persona"},
	)

	compactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_compactions_total",
			Help: "Total number of memory compactions",
		},
		[]string{"persona"},
	)

	// Gateway metrics
	gatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_gateway_errors_total",
			Help: "Total number of gateway failures by pipeline step",
		},
		[]string{"step"},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicebot_pipeline_step_duration_seconds",
			Help:    "Pipeline step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicebot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicebot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// System metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicebot_active_sessions",
			Help: "Number of live chat sessions",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus metrics.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			silentTurnsTotal,
			compactionsTotal,
			gatewayErrorsTotal,
			stepDuration,
			httpRequestsTotal,
			httpRequestDuration,
			activeSessions,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a completed or failed conversation turn.
func RecordTurn(persona, kind, status string, duration time.Duration) {
	turnsTotal.WithLabelValues(persona, kind, status).Inc()
	turnDuration.WithLabelValues(persona, kind).Observe(duration.Seconds())
}

// RecordSilentTurn records a voice turn classified as silent.
func RecordSilentTurn(persona string) {
	silentTurnsTotal.WithLabelValues(persona).Inc()
}

// RecordCompaction records a memory compaction.
func RecordCompaction(persona string) {
	compactionsTotal.WithLabelValues(persona).Inc()
}

// RecordGatewayError records a gateway failure for a pipeline step.
func RecordGatewayError(step string) {
	gatewayErrorsTotal.WithLabelValues(step).Inc()
}

// RecordStep records a pipeline step duration.
func RecordStep(step string, duration time.Duration) {
	stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
