package provider

import (
	"encoding/json"
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		in     int
		out    int
		want   float64
		isZero bool
	}{
		{name: "gemini flash", model: "gemini-2.5-flash", in: 1000, out: 1000, want: 0.00015 + 0.00060},
		{name: "versioned name still matches", model: "gpt-4.1-2025-04-14", in: 2000, out: 500, want: 2*0.002 + 0.5*0.008},
		{name: "mini not shadowed by base model", model: "gpt-4o-mini", in: 1000, out: 0, want: 0.00015},
		{name: "unknown model costs nothing", model: "llama-3-70b", in: 1000, out: 1000, isZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(tt.model, tt.in, tt.out)
			if tt.isZero {
				if got != 0 {
					t.Errorf("EstimateCost(%q) = %v, want 0", tt.model, got)
				}
				return
			}
			if diff := got - tt.want; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("EstimateCost(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("Rate Limit exceeded for model"), true},
		{"http 429", errors.New("status code: 429"), true},
		{"server error", errors.New("upstream returned 503 Service Unavailable"), true},
		{"network", errors.New("read tcp: connection reset by peer"), true},
		{"resource exhausted", errors.New("rpc error: code = ResourceExhausted"), true},
		{"bad request", errors.New("status code: 400 invalid schema"), false},
		{"auth", errors.New("status code: 401 incorrect API key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, _, err := New("anthropic", Options{APIKey: "k"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, _, err := New("openai", Options{})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewOpenAIPair(t *testing.T) {
	llm, emb, err := New("openai", Options{
		APIKey:        "sk-test",
		Model:         "gpt-4o-mini",
		EmbedderModel: "text-embedding-3-small",
		Dimension:     768,
	})
	if err != nil {
		t.Fatalf("New(openai) failed: %v", err)
	}
	if llm.Model() != "gpt-4o-mini" {
		t.Errorf("model = %q", llm.Model())
	}
	if emb.Dimension() != 768 {
		t.Errorf("dimension = %d", emb.Dimension())
	}
}

func TestMessageRoundTripOpenAI(t *testing.T) {
	msg := Message{
		Role:    RoleAssistant,
		Content: "checking the knowledge base",
		ToolCalls: []ToolCall{{
			ID:        "call_abc",
			Name:      "knowledge_base",
			Arguments: json.RawMessage(`{"query":"yellow leaves"}`),
		}},
	}

	back := fromOpenAIMessage(toOpenAIMessage(msg))

	if back.Role != msg.Role || back.Content != msg.Content {
		t.Errorf("round trip changed message: %+v", back)
	}
	if len(back.ToolCalls) != 1 || back.ToolCalls[0].ID != "call_abc" ||
		back.ToolCalls[0].Name != "knowledge_base" ||
		string(back.ToolCalls[0].Arguments) != `{"query":"yellow leaves"}` {
		t.Errorf("round trip changed tool calls: %+v", back.ToolCalls)
	}
}

func TestToGeminiSchema(t *testing.T) {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"query": {Type: "string", Description: "search query"},
			"tags":  {Type: "array", Items: &Schema{Type: "string", Enum: []string{"a", "b"}}},
		},
		Required: []string{"query"},
	}

	got := toGeminiSchema(s)
	if got.Type != genai.TypeObject {
		t.Errorf("type = %v", got.Type)
	}
	if got.Properties["query"].Type != genai.TypeString {
		t.Errorf("query type = %v", got.Properties["query"].Type)
	}
	if got.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("items type = %v", got.Properties["tags"].Items.Type)
	}
	if len(got.Required) != 1 || got.Required[0] != "query" {
		t.Errorf("required = %v", got.Required)
	}
	if toGeminiSchema(nil) != nil {
		t.Error("nil schema should map to nil")
	}
}

func TestToolMessageLinkage(t *testing.T) {
	m := ToolMessage("call_1", "plant_calculator", "ratio 3-1-2")
	if m.Role != RoleTool || m.ToolCallID != "call_1" || m.Name != "plant_calculator" {
		t.Errorf("tool message = %+v", m)
	}
}
