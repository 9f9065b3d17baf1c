// Package metrics provides Prometheus instrumentation for the compliance
// service.
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
	// ChecksTotal counts pre-trade checks, partitioned by outcome
	// ("pass" or "fail").
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucits_checks_total",
		Help: "Total number of pre-trade compliance checks",
	}, []string{"result"})

	// CheckLatency tracks evaluation latency by outcome.
	CheckLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ucits_check_duration_seconds",
		Help:    "Pre-trade check latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// BreachesTotal counts limit breaches by rule.
	BreachesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucits_breaches_total",
		Help: "Total limit breaches reported, by rule",
	}, []string{"rule"})

	// EligibilityRejections counts checks rejected before any exposure
	// math (unknown or ineligible asset, computation errors).
	EligibilityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucits_eligibility_rejections_total",
		Help: "Checks rejected by the eligibility/input gate",
	})

	// TradesRecorded counts trades applied after an approved check.
	TradesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucits_trades_recorded_total",
		Help: "Trades applied to fund positions after approval",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ucits_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ucits_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ucits_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
