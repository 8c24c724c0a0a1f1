package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the core's operational metrics.
//
// The metrics cover the full path of a conversation turn:
//   - buffer lifecycle (fragments appended, claims won/lost, drains)
//   - engine behavior (iterations per run, LLM latency, tokens)
//   - tool execution patterns and latencies
//   - delivery outcomes per channel
type Metrics struct {
	// FragmentsBuffered counts inbound fragments appended to buffers.
	// Labels: tenant
	FragmentsBuffered *prometheus.CounterVec

	// ActiveBuffers is a gauge of currently open buffers.
	ActiveBuffers prometheus.Gauge

	// Claims counts claim attempts by outcome.
	// Labels: outcome (won|lost)
	Claims *prometheus.CounterVec

	// Drains counts buffer drains by outcome.
	// Labels: outcome (ok|error)
	Drains *prometheus.CounterVec

	// EngineIterations measures LLM/tool round-trips per engine run.
	// Buckets: 1..8
	EngineIterations prometheus.Histogram

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokens tracks token consumption.
	// Labels: provider, kind (prompt|completion)
	LLMTokens *prometheus.CounterVec

	// ToolExecutions counts tool invocations.
	// Labels: tool, status (success|error)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// Deliveries counts outbound deliveries by outcome.
	// Labels: outcome (ok|partial|failed)
	Deliveries *prometheus.CounterVec
}

// NewMetrics creates and registers the core metrics with the given registerer.
// Passing nil registers against the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FragmentsBuffered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_fragments_buffered_total",
			Help: "Inbound message fragments appended to conversation buffers.",
		}, []string{"tenant"}),

		ActiveBuffers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentcore_active_buffers",
			Help: "Currently open conversation buffers.",
		}),

		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_claims_total",
			Help: "Buffer claim attempts by outcome.",
		}, []string{"outcome"}),

		Drains: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_drains_total",
			Help: "Buffer drains by outcome.",
		}, []string{"outcome"}),

		EngineIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentcore_engine_iterations",
			Help:    "LLM/tool round-trips per conversation engine run.",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),

		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_llm_request_duration_seconds",
			Help:    "LLM API call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),

		LLMTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_llm_tokens_total",
			Help: "Token consumption by kind.",
		}, []string{"provider", "kind"}),

		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_tool_executions_total",
			Help: "Tool invocations by status.",
		}, []string{"tool", "status"}),

		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentcore_tool_duration_seconds",
			Help:    "Tool execution time.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool"}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentcore_deliveries_total",
			Help: "Outbound deliveries by outcome.",
		}, []string{"outcome"}),
	}
}
