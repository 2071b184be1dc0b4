// Package telemetry exposes the server's Prometheus collectors and the HTTP
// middleware that feeds them. Everything registers on the default registry;
// main mounts promhttp on /metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogd_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dialogd_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	MessagesMarkedRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogd_messages_marked_read_total",
		Help: "Messages flipped to read by bulk read-state transitions.",
	})

	JanitorRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogd_janitor_removed_total",
		Help: "Orphaned rows removed by the janitor sweep.",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. The route label comes from
// the routeFn so mux path templates are used instead of raw URLs (bounded
// label cardinality).
func Middleware(routeFn func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(srw, r)
			route := routeFn(r)
			RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(srw.status)).Inc()
			RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
