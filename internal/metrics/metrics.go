package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AccessDecisionsTotal *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec

	TasksEnqueuedTotal *prometheus.CounterVec
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reliefdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reliefdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reliefdesk_access_decisions_total",
				Help: "Access guard decisions by outcome and reason",
			},
			[]string{"kind", "reason"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reliefdesk_transitions_total",
				Help: "Request status transitions by outcome",
			},
			[]string{"outcome"},
		),
		TasksEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reliefdesk_tasks_enqueued_total",
				Help: "Background tasks enqueued by type and status",
			},
			[]string{"type", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessDecisionsTotal,
		m.TransitionsTotal,
		m.TasksEnqueuedTotal,
	)

	return m
}

// ObserveDecision counts one guard decision.
func (m *Metrics) ObserveDecision(d access.Decision) {
	reason := string(d.Reason)
	if reason == "" {
		reason = "none"
	}
	m.AccessDecisionsTotal.WithLabelValues(string(d.Kind), reason).Inc()
}

func (m *Metrics) ObserveTransition(outcome string) {
	m.TransitionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveEnqueue(taskType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TasksEnqueuedTotal.WithLabelValues(taskType, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
