package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/observability"
	"github.com/verdantlabs/verdant/internal/provider"
)

// Registry holds the registered tools and executes model-requested calls
// with timing instrumentation. Registration happens at startup; after
// that the registry is read-only and safe for concurrent use.
type Registry struct {
	tools    map[string]Tool
	order    []string
	recorder *observability.Recorder
	model    string
	logger   log.Logger
}

// NewRegistry creates a Registry. recorder may be nil.
func NewRegistry(recorder *observability.Recorder, model string, logger log.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		recorder: recorder,
		model:    model,
		logger:   logger.With("component", "tools"),
	}
}

// Register adds a tool. Registering a duplicate name panics: tool sets
// are static and a clash is a programming error.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; exists {
		panic(fmt.Sprintf("tool %q registered twice", t.Name()))
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
}

// Specs declares every registered tool to the model, in registration order.
func (r *Registry) Specs() []provider.ToolSpec {
	specs := make([]provider.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, provider.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return specs
}

// Execute runs one model-requested tool call and records its telemetry.
// Failures come back as *ToolError so the caller can surface a
// failure-flagged tool message instead of aborting the turn.
func (r *Registry) Execute(ctx context.Context, call provider.ToolCall) (string, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return "", &ToolError{ErrorType: "UnknownTool", Message: fmt.Sprintf("no tool named %q", call.Name)}
	}

	sessionID := SessionIDFromContext(ctx)
	start := time.Now()
	out, err := t.Invoke(ctx, call.Arguments)
	elapsed := time.Since(start)

	r.recorder.ObserveToolCall(call.Name, sessionID, r.model, elapsed)
	r.logger.Debug("tool executed",
		"tool", call.Name, "session_id", sessionID, "elapsed", elapsed, "error", err)

	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return "", toolErr
		}
		return "", &ToolError{ErrorType: "ExecutionFailed", Message: err.Error()}
	}
	return out, nil
}
