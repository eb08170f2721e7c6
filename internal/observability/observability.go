// Package observability emits per-call telemetry for LLM and tool
// invocations through prometheus collectors. Instrumentation is explicit:
// callers wrap each invocation with RecordLLMCall / ObserveToolCall
// rather than attaching hooks.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the telemetry collectors. A nil *Recorder is valid and
// records nothing, so tests and tools can run without a registry.
type Recorder struct {
	llmInputTokens    *prometheus.GaugeVec
	llmOutputTokens   *prometheus.GaugeVec
	llmTotalTokens    *prometheus.GaugeVec
	llmTotalCost      *prometheus.GaugeVec
	llmDuration       *prometheus.HistogramVec
	llmStreamDuration *prometheus.HistogramVec
	toolCalls         *prometheus.GaugeVec
	toolDuration      *prometheus.HistogramVec
}

// NewRecorder creates a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		llmInputTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_input_tokens",
			Help: "Number of input tokens used",
		}, []string{"session_id", "model"}),
		llmOutputTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_output_tokens",
			Help: "Number of output tokens used",
		}, []string{"session_id", "model"}),
		llmTotalTokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_total_tokens",
			Help: "Total number of tokens used",
		}, []string{"session_id", "model"}),
		llmTotalCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_total_cost",
			Help: "Total cost for tokens used",
		}, []string{"session_id", "model"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_inference_duration_seconds",
			Help:    "Time spent processing LLM inference",
			Buckets: []float64{0.1, 0.3, 0.5, 1, 2, 5, 10, 15},
		}, []string{"model"}),
		llmStreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "Time spent processing LLM stream inference",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20},
		}, []string{"model"}),
		toolCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_tool_calls",
			Help: "Total calls of available tools",
		}, []string{"tool_name", "session_id", "model"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_tool_call_duration_seconds",
			Help:    "Time spent processing tool inference",
			Buckets: []float64{0.1, 0.3, 0.5, 1, 2, 5},
		}, []string{"tool_name", "session_id", "model"}),
	}

	reg.MustRegister(
		r.llmInputTokens, r.llmOutputTokens, r.llmTotalTokens, r.llmTotalCost,
		r.llmDuration, r.llmStreamDuration, r.toolCalls, r.toolDuration,
	)
	return r
}

// RecordLLMCall records token usage, cost, and duration of one LLM call.
func (r *Recorder) RecordLLMCall(sessionID, model string, inputTokens, outputTokens int, cost float64, elapsed time.Duration, streamed bool) {
	if r == nil {
		return
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	r.llmInputTokens.WithLabelValues(sessionID, model).Add(float64(inputTokens))
	r.llmOutputTokens.WithLabelValues(sessionID, model).Add(float64(outputTokens))
	r.llmTotalTokens.WithLabelValues(sessionID, model).Add(float64(inputTokens + outputTokens))
	if cost > 0 {
		r.llmTotalCost.WithLabelValues(sessionID, model).Add(cost)
	}
	if streamed {
		r.llmStreamDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	} else {
		r.llmDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	}
}

// ObserveToolCall records one tool invocation.
func (r *Recorder) ObserveToolCall(toolName, sessionID, model string, elapsed time.Duration) {
	if r == nil {
		return
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	r.toolCalls.WithLabelValues(toolName, sessionID, model).Inc()
	r.toolDuration.WithLabelValues(toolName, sessionID, model).Observe(elapsed.Seconds())
}
