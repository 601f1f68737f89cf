// Package metrics holds the prometheus collectors for the workflow and the
// HTTP surface.
//
// Collectors live on a Metrics value with its own registry rather than in
// the global default registry, so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/reportnavi/internal/apperror"
)

const namespace = "reportnavi"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	removals      *prometheus.CounterVec
	pointsAwarded prometheus.Counter
	backendErrors *prometheus.CounterVec
}

// New registers every collector, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_submissions_total",
			Help:      "Report submissions by result",
		}, []string{"result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_transitions_total",
			Help:      "Report status transitions by target status and result",
		}, []string{"target", "result"}),
		removals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_removals_total",
			Help:      "Report removals by result",
		}, []string{"result"}),
		pointsAwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Reputation points credited to report owners",
		}),
		backendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Storage backend failures seen by the workflow",
		}, []string{"backend"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveSubmission(err error) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(Result(err)).Inc()
	m.observeBackend(err)
}

func (m *Metrics) ObserveTransition(target string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, Result(err)).Inc()
	m.observeBackend(err)
}

func (m *Metrics) ObserveRemoval(err error) {
	if m == nil {
		return
	}
	m.removals.WithLabelValues(Result(err)).Inc()
	m.observeBackend(err)
}

func (m *Metrics) AddPointsAwarded(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

func (m *Metrics) observeBackend(err error) {
	var be *apperror.BackendError
	if errors.As(err, &be) {
		m.backendErrors.WithLabelValues(be.Backend).Inc()
	}
}

// Result maps an operation error to a low-cardinality label value.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrValidation):
		return "invalid"
	case errors.Is(err, apperror.ErrForbidden):
		return "forbidden"
	case errors.Is(err, apperror.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperror.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, apperror.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrBackend):
		return "backend_error"
	}
	return "error"
}
