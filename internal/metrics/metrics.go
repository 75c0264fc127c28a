// Package metrics exposes Prometheus collectors. The tool dispatcher
// publishes the tool-call metrics; the catalog-write collectors and
// ObserveWrite are defined here but not called anywhere in this module
// (ambient observability stack per the teacher:
// internal/observability.Metrics in haasonsaas/nexus). Adapted from the
// teacher's channel/LLM/webhook label set to the cortex domain: tool calls,
// catalog writes, and broadcast delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors a running core publishes. Each Metrics value
// owns a private registry so multiple catalogs (e.g. one per test) can each
// construct one without colliding on Prometheus's global default registry,
// the way the teacher's single-process NewMetrics() assumes.
type Metrics struct {
	Registry *prometheus.Registry

	// ToolCallCounter counts cortex_* tool invocations by name and outcome.
	// Labels: tool, status (ok|error)
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool dispatch latency in seconds.
	// Labels: tool
	ToolCallDuration *prometheus.HistogramVec

	// StorageWriteDuration measures storage engine write latency in seconds.
	// Labels: operation (create_memory|update_memory|forget_memory|log_activity|...)
	StorageWriteDuration *prometheus.HistogramVec

	// StorageWriteCounter counts storage engine writes by operation and outcome.
	StorageWriteCounter *prometheus.CounterVec

	// BroadcastDropped counts change events dropped from a subscriber's
	// bounded queue (spec.md §4.7, §5).
	BroadcastDropped prometheus.Counter

	// ActiveCatalogs gauges the number of currently open catalog handles.
	ActiveCatalogs prometheus.Gauge
}

// New builds a Metrics value registered against a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnicortex_tool_calls_total",
				Help: "Total number of cortex_* tool invocations by tool and outcome",
			},
			[]string{"tool", "status"},
		),

		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnicortex_tool_call_duration_seconds",
				Help:    "Duration of cortex_* tool dispatch in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),

		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnicortex_storage_write_duration_seconds",
				Help:    "Duration of storage engine writes in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),

		StorageWriteCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnicortex_storage_writes_total",
				Help: "Total number of storage engine writes by operation and outcome",
			},
			[]string{"operation", "status"},
		),

		BroadcastDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "omnicortex_broadcast_dropped_total",
				Help: "Total number of change events dropped from a subscriber queue",
			},
		),

		ActiveCatalogs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omnicortex_active_catalogs",
				Help: "Number of currently open catalog handles",
			},
		),
	}
}

// ObserveToolCall records one tool dispatch's outcome and latency.
func (m *Metrics) ObserveToolCall(tool string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolCallCounter.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}

// ObserveWrite records one storage engine write's outcome and latency.
func (m *Metrics) ObserveWrite(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageWriteCounter.WithLabelValues(operation, status).Inc()
	m.StorageWriteDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
