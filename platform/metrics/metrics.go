// Package metrics exposes Prometheus instrumentation for the automation core.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Metrics bundles the collectors used by the automation core.
type Metrics struct {
	registry *prometheus.Registry

	// AutomationDecisions counts HandleInboundMessage outcomes by kind.
	AutomationDecisions *prometheus.CounterVec
	// EscalationWait observes seconds between ticket creation and acceptance.
	EscalationWait prometheus.Histogram
	// PendingTickets tracks the current number of pending escalation tickets.
	PendingTickets prometheus.Gauge
	// CompletionFailures counts transient completion-capability failures.
	CompletionFailures *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AutomationDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automation_decisions_total",
			Help: "Inbound message handling outcomes by decision kind.",
		}, []string{"outcome"}),
		EscalationWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "escalation_wait_seconds",
			Help:    "Time a ticket spent pending before an agent accepted it.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		PendingTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escalation_pending_tickets",
			Help: "Current number of pending escalation tickets.",
		}),
		CompletionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "completion_failures_total",
			Help: "Transient completion-capability failures by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.AutomationDecisions,
		m.EscalationWait,
		m.PendingTickets,
		m.CompletionFailures,
	)
	return m
}

// Handler returns the gin handler serving the /metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
