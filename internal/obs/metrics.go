// Package obs wires log/slog structured logging and passive Prometheus
// metrics for the router, adapted from the teacher's internal/observability
// package (spec.md §3's ambient stack).
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks router call volume, latency, and policy decisions.
type Metrics struct {
	ToolCallCounter  *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	PolicyDecisions  *prometheus.CounterVec
	PendingEvents    *prometheus.GaugeVec
	ActiveSessions   prometheus.Gauge
}

// NewMetrics registers the router's metrics against reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid colliding with other instances;
// pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vei_tool_calls_total",
				Help: "Total router tool calls by tool name and outcome.",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vei_tool_call_latency_ms",
				Help:    "Simulated tool call latency in milliseconds.",
				Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600},
			},
			[]string{"tool"},
		),
		PolicyDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vei_policy_decisions_total",
				Help: "Connector policy gate decisions by service and action.",
			},
			[]string{"service", "action"},
		),
		PendingEvents: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vei_pending_events",
				Help: "Scheduled-but-undelivered bus events by kind.",
			},
			[]string{"kind"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vei_active_sessions",
				Help: "Number of router sessions currently open.",
			},
		),
	}
}

// ObserveCall records a completed tool call's outcome and latency.
func (m *Metrics) ObserveCall(tool string, ok bool, latencyMs int64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ToolCallCounter.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(float64(latencyMs))
}

// ObservePolicyDecision records one connector policy gate verdict.
func (m *Metrics) ObservePolicyDecision(service, action string) {
	m.PolicyDecisions.WithLabelValues(service, action).Inc()
}
