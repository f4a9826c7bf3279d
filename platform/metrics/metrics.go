// Package metrics provides Prometheus metrics for the lead intake service.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Conversation turns
	TurnsTotal            *prometheus.CounterVec
	QualificationDuration prometheus.Histogram
	QualificationFailures *prometheus.CounterVec

	// Session cache
	SessionCacheFallbacks *prometheus.CounterVec

	// Leads
	StatusTransitions *prometheus.CounterVec

	// Background work
	FollowUpTasks *prometheus.CounterVec
}

// New creates all collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadintake_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_chat_turns_total",
			Help: "Visitor turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	m.QualificationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadintake_qualification_duration_seconds",
			Help:    "Latency of calls to the reasoning service",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	m.QualificationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_qualification_failures_total",
			Help: "Failed evaluations, by kind",
		},
		[]string{"kind"},
	)

	m.SessionCacheFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_session_cache_fallbacks_total",
			Help: "Session operations served by the in-process store after a cache failure",
		},
		[]string{"operation"},
	)

	m.StatusTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_lead_status_transitions_total",
			Help: "Lead status changes",
		},
		[]string{"from", "to"},
	)

	m.FollowUpTasks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadintake_followup_tasks_total",
			Help: "Outcome follow-up tasks, by result",
		},
		[]string{"result"},
	)

	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQualification(d time.Duration) {
	if m == nil {
		return
	}
	m.QualificationDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordQualificationFailure(kind string) {
	if m == nil {
		return
	}
	m.QualificationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheFallback(operation string) {
	if m == nil {
		return
	}
	m.SessionCacheFallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordFollowUp(result string) {
	if m == nil {
		return
	}
	m.FollowUpTasks.WithLabelValues(result).Inc()
}
