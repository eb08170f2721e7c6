package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLLMCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordLLMCall("sess-1", "gpt-4o-mini", 100, 40, 0.002, 300*time.Millisecond, false)
	r.RecordLLMCall("sess-1", "gpt-4o-mini", 50, 10, 0, 100*time.Millisecond, false)

	if got := testutil.ToFloat64(r.llmInputTokens.WithLabelValues("sess-1", "gpt-4o-mini")); got != 150 {
		t.Errorf("input tokens = %v, want 150", got)
	}
	if got := testutil.ToFloat64(r.llmTotalTokens.WithLabelValues("sess-1", "gpt-4o-mini")); got != 200 {
		t.Errorf("total tokens = %v, want 200", got)
	}
	if got := testutil.ToFloat64(r.llmTotalCost.WithLabelValues("sess-1", "gpt-4o-mini")); got != 0.002 {
		t.Errorf("cost = %v, want 0.002", got)
	}
}

func TestRecordLLMCallEmptySession(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordLLMCall("", "gpt-4o-mini", 10, 5, 0, time.Millisecond, false)

	if got := testutil.ToFloat64(r.llmInputTokens.WithLabelValues("unknown", "gpt-4o-mini")); got != 10 {
		t.Errorf("empty session should record under unknown, got %v", got)
	}
}

func TestObserveToolCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveToolCall("knowledge_base", "sess-1", "gpt-4o-mini", 200*time.Millisecond)
	r.ObserveToolCall("knowledge_base", "sess-1", "gpt-4o-mini", 100*time.Millisecond)

	if got := testutil.ToFloat64(r.toolCalls.WithLabelValues("knowledge_base", "sess-1", "gpt-4o-mini")); got != 2 {
		t.Errorf("tool calls = %v, want 2", got)
	}

	names, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var found bool
	for _, mf := range names {
		if strings.HasPrefix(mf.GetName(), "llm_tool_call_duration") {
			found = true
		}
	}
	if !found {
		t.Error("tool duration histogram not registered")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordLLMCall("s", "m", 1, 1, 0.1, time.Second, true)
	r.ObserveToolCall("t", "s", "m", time.Second)
}
