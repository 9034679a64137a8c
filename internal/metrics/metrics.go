// Package metrics registers the Prometheus counters/histograms of this
// engine's core: agent loop iterations, tool call latency by tool name,
// stream depth, and sandbox readiness latency. internal/chat records
// LoopIterations and StreamDepth; nothing in this module observes
// ToolCallDuration or SandboxReadyDuration.
//
// Grounded on internal/observability/metrics.go's promauto-constructed
// CounterVec/HistogramVec/GaugeVec fields, trimmed to this core's subset
// -- the teacher's channel/session-duration metrics belong to the
// out-of-scope outer HTTP layer and are not reproduced here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the engine's Prometheus registration surface. Construct one
// with NewMetrics and thread it through the components that emit.
type Metrics struct {
	// LoopIterations counts agent-loop iterations by outcome
	// (tool_call|message|error).
	LoopIterations *prometheus.CounterVec

	// ToolCallDuration measures tool dispatch latency in seconds, by
	// tool name and success/failure.
	ToolCallDuration *prometheus.HistogramVec

	// StreamDepth gauges the current entry count of a stream, by
	// direction (input|output) and a stream name label.
	StreamDepth *prometheus.GaugeVec

	// SandboxReadyDuration measures how long ensure_ready took to
	// observe every service RUNNING.
	SandboxReadyDuration prometheus.Histogram
}

// NewMetrics constructs and registers every metric against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoopIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentexec_loop_iterations_total",
			Help: "Agent loop iterations, labeled by outcome.",
		}, []string{"outcome"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentexec_tool_call_duration_seconds",
			Help:    "Tool dispatch latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool_name", "status"}),
		StreamDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentexec_stream_depth",
			Help: "Current entry count of a task input/output stream.",
		}, []string{"direction", "stream"}),
		SandboxReadyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentexec_sandbox_ready_duration_seconds",
			Help:    "Time for a sandbox's ensure_ready poll loop to observe every service RUNNING.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60},
		}),
	}
}

// Noop returns a Metrics registered against a fresh, unshared registry --
// useful for tests and callers that don't want metrics wired to the
// process-global default registry.
func Noop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
