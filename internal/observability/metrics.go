package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_http_requests_total",
			Help: "Total number of HTTP requests processed by the ops server.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_http_request_duration_seconds",
			Help:    "Ops server request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	challengesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_challenges_issued_total",
			Help: "Total number of challenges issued to join requesters.",
		},
	)
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_decisions_total",
			Help: "Total number of terminal admission decisions by verdict.",
		},
		[]string{"verdict"},
	)
	activeChallenges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatekeeper_active_challenges",
			Help: "Number of currently outstanding challenges.",
		},
	)
	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_backend_request_duration_seconds",
			Help:    "LLM backend call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	backendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_backend_errors_total",
			Help: "Total number of failed LLM backend calls.",
		},
		[]string{"op"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		challengesIssuedTotal,
		decisionsTotal,
		activeChallenges,
		backendRequestDuration,
		backendErrorsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func IncChallengeIssued() {
	challengesIssuedTotal.Inc()
}

func IncDecision(verdict string) {
	decisionsTotal.WithLabelValues(verdict).Inc()
}

func SetActiveChallenges(n int) {
	activeChallenges.Set(float64(n))
}

func ObserveBackendRequest(op string, d time.Duration) {
	backendRequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func IncBackendError(op string) {
	backendErrorsTotal.WithLabelValues(op).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
