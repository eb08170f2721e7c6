package agent

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/verdantlabs/verdant/internal/checkpoint"
	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/observability"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/tools"
)

// OrchestratorConfig carries the Orchestrator dependencies and tunables.
type OrchestratorConfig struct {
	LLM         provider.LLM
	Registry    *tools.Registry
	Checkpoints checkpoint.Store
	Recorder    *observability.Recorder
	Logger      log.Logger

	MaxSteps   int
	MaxHistory int
	Retry      RetryConfig

	// Token-bucket rate for outbound LLM calls, shared process-wide.
	RatePerSecond float64
	Burst         int

	// Debug exposes tool and system scaffolding in returned histories.
	Debug bool
}

// Orchestrator is the top-level conversation API. The state machine is
// constructed lazily on first use, guarded so concurrent first-callers do
// not double-construct; the rate limiter it carries is process-wide.
type Orchestrator struct {
	cfg    OrchestratorConfig
	logger log.Logger

	mu      sync.Mutex
	machine *Machine
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.MaxSteps < 1 {
		cfg.MaxSteps = 10
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "orchestrator"),
	}, nil
}

// ensureMachine lazily builds the state machine exactly once.
func (o *Orchestrator) ensureMachine() (*Machine, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.machine != nil {
		return o.machine, nil
	}

	var limiter *rate.Limiter
	if o.cfg.RatePerSecond > 0 {
		burst := o.cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(o.cfg.RatePerSecond), burst)
	}

	machine, err := NewMachine(MachineConfig{
		LLM:        o.cfg.LLM,
		Registry:   o.cfg.Registry,
		Limiter:    limiter,
		Recorder:   o.cfg.Recorder,
		Retry:      o.cfg.Retry,
		MaxHistory: o.cfg.MaxHistory,
		Logger:     o.cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building state machine: %w", err)
	}
	o.machine = machine
	return machine, nil
}

// GetResponse runs a full turn to DONE and returns the visible message
// list: user/assistant turns with non-empty content, or everything in
// debug mode.
func (o *Orchestrator) GetResponse(ctx context.Context, messages []provider.Message, sessionID string) ([]provider.Message, error) {
	conv, err := o.runTurn(ctx, messages, sessionID, nil)
	if err != nil {
		return nil, err
	}
	return filterMessages(conv.Messages, o.cfg.Debug), nil
}

// GetStreamResponse runs a turn in streaming mode, delivering text
// fragments through fn as they are produced. Failures upstream of
// fragment production abort the stream with a terminal error.
func (o *Orchestrator) GetStreamResponse(ctx context.Context, messages []provider.Message, sessionID string, fn provider.StreamFunc) error {
	_, err := o.runTurn(ctx, messages, sessionID, fn)
	return err
}

func (o *Orchestrator) runTurn(ctx context.Context, messages []provider.Message, sessionID string, stream provider.StreamFunc) (*Conversation, error) {
	machine, err := o.ensureMachine()
	if err != nil {
		return nil, err
	}

	state, err := o.cfg.Checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	conv := &Conversation{SessionID: sessionID, StepsLeft: o.cfg.MaxSteps}
	if state != nil {
		conv.Messages = state.Messages
	}
	conv.Messages = append(conv.Messages, messages...)

	if err := machine.Run(ctx, conv, stream); err != nil {
		return nil, err
	}

	if err := o.cfg.Checkpoints.Save(ctx, &checkpoint.State{
		SessionID: sessionID,
		Messages:  conv.Messages,
	}); err != nil {
		return nil, fmt.Errorf("saving session %s: %w", sessionID, err)
	}
	return conv, nil
}

// GetChatHistory returns the persisted conversation for a session without
// running a turn. Unknown sessions return an empty list.
func (o *Orchestrator) GetChatHistory(ctx context.Context, sessionID string, debug bool) ([]provider.Message, error) {
	state, err := o.cfg.Checkpoints.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	if state == nil {
		return []provider.Message{}, nil
	}
	return filterMessages(state.Messages, debug && o.cfg.Debug), nil
}

// ClearChatHistory deletes all persisted state for a session.
func (o *Orchestrator) ClearChatHistory(ctx context.Context, sessionID string) error {
	if err := o.cfg.Checkpoints.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	o.logger.Info("chat history cleared", "session_id", sessionID)
	return nil
}

// filterMessages strips scaffolding from the externally visible history:
// only user and assistant messages with non-empty content remain unless
// debug is set.
func filterMessages(messages []provider.Message, debug bool) []provider.Message {
	if debug {
		return messages
	}
	visible := make([]provider.Message, 0, len(messages))
	for _, m := range messages {
		if (m.Role == provider.RoleUser || m.Role == provider.RoleAssistant) && m.Content != "" {
			visible = append(visible, m)
		}
	}
	return visible
}
