// Package metrics provides Prometheus instrumentation for the nudgz server.
//
// All metrics are registered in a custom [prometheus.Registry] (not the global
// default) so that only nudgz metrics appear on the /metrics endpoint.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors used by the nudgz server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EligibilityTotal    *prometheus.CounterVec
	ImpressionsTotal    *prometheus.CounterVec
	ImpressionDedups    prometheus.Counter
	AuthFailuresTotal   prometheus.Counter
}

// New creates and registers all nudgz metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nudgz_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nudgz_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		EligibilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nudgz_eligibility_evaluations_total",
			Help: "Total number of per-surface eligibility evaluations by outcome.",
		}, []string{"surface_type", "outcome"}),

		ImpressionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nudgz_impressions_total",
			Help: "Total number of recorded impressions by action.",
		}, []string{"action"}),

		ImpressionDedups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nudgz_impression_dedups_total",
			Help: "Total number of terminal impression replays answered from the existing record.",
		}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nudgz_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EligibilityTotal,
		m.ImpressionsTotal,
		m.ImpressionDedups,
		m.AuthFailuresTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// EligibilityOutcome increments the eligibility counter for one surface
// evaluation.
func (m *Metrics) EligibilityOutcome(surfaceType, outcome string) {
	m.EligibilityTotal.WithLabelValues(surfaceType, outcome).Inc()
}

// ImpressionRecorded increments the impression counter, and the dedup counter
// when the write was answered from an existing terminal record.
func (m *Metrics) ImpressionRecorded(action string, deduped bool) {
	m.ImpressionsTotal.WithLabelValues(action).Inc()
	if deduped {
		m.ImpressionDedups.Inc()
	}
}

// statusRecorder captures the response status for request instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.status = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

type routeContextKey struct{}

// CaptureRoute exposes the ServeMux pattern matched beneath it to an enclosing
// [Metrics.HTTPMiddleware]. Middleware between the two may call
// [http.Request.WithContext], which copies the request, so the pattern the mux
// sets never reaches the outer middleware directly. Wrap each mux with
// CaptureRoute; the innermost matched pattern wins.
func CaptureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if route, ok := r.Context().Value(routeContextKey{}).(*string); ok && *route == "" {
			*route = r.Pattern
		}
	})
}

// HTTPMiddleware records request count and latency per method, route pattern,
// and status.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var route string
		r = r.WithContext(context.WithValue(r.Context(), routeContextKey{}, &route))
		start := time.Now()
		next.ServeHTTP(recorder, r)

		if route == "" {
			route = r.Pattern
		}
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(recorder.status)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
