package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/observability"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/tools"
)

// RetryConfig configures the backoff for LLM calls.
type RetryConfig struct {
	MaxAttempts     int           // attempts per call, including the first
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Machine drives one turn through the ROUTE / SPECIALIST_ACT / TOOL_EXEC
// states until DONE. It owns no session state: the caller passes the
// Conversation in and persists it afterwards.
//
// Machine is stateless after construction and safe for concurrent use.
type Machine struct {
	llm        provider.LLM
	registry   *tools.Registry
	limiter    *rate.Limiter // gates every outbound LLM attempt; may be nil
	recorder   *observability.Recorder
	retry      RetryConfig
	maxHistory int // message window per LLM call
	logger     log.Logger
}

// MachineConfig carries the Machine dependencies.
type MachineConfig struct {
	LLM        provider.LLM
	Registry   *tools.Registry
	Limiter    *rate.Limiter
	Recorder   *observability.Recorder
	Retry      RetryConfig
	MaxHistory int
	Logger     log.Logger
}

// NewMachine creates a Machine.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = 50
	}
	return &Machine{
		llm:        cfg.LLM,
		registry:   cfg.Registry,
		limiter:    cfg.Limiter,
		recorder:   cfg.Recorder,
		retry:      cfg.Retry,
		maxHistory: cfg.MaxHistory,
		logger:     cfg.Logger.With("component", "machine"),
	}, nil
}

// Run advances the conversation until DONE. When stream is non-nil the
// specialist's text is delivered through it as it is produced; an error
// returned by stream on one fragment is logged and skipped so the stream
// continues.
func (m *Machine) Run(ctx context.Context, conv *Conversation, stream provider.StreamFunc) error {
	state := StateRoute

	for state != StateDone {
		// The step budget bounds worst-case latency and cost per turn.
		// Exhaustion forces DONE with whatever partial state exists.
		if conv.StepsLeft <= 0 {
			m.logger.Warn("step budget exhausted, forcing DONE", "session_id", conv.SessionID)
			return nil
		}
		conv.StepsLeft--

		var err error
		switch state {
		case StateRoute:
			state, err = m.route(ctx, conv, stream)
		case StateSpecialistAct:
			state, err = m.specialistAct(ctx, conv, stream)
		case StateToolExec:
			state, err = m.toolExec(ctx, conv)
		default:
			return fmt.Errorf("unknown state %q", state)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// route lets the supervisor answer directly or hand off to the specialist.
// The stream is wired in here too: a direct answer (greeting, capability
// question) is the turn's only output and must still reach the consumer.
func (m *Machine) route(ctx context.Context, conv *Conversation, stream provider.StreamFunc) (State, error) {
	reply, err := m.chatWithRetry(ctx, conv.SessionID, supervisorPrompt, conv.Messages, delegateSpec(), stream)
	if err != nil {
		return StateDone, err
	}
	conv.Messages = append(conv.Messages, reply.Message)

	for _, call := range reply.Message.ToolCalls {
		if call.Name == delegateToolName {
			// Acknowledge the handoff so the call id stays linked.
			conv.Messages = append(conv.Messages,
				provider.ToolMessage(call.ID, call.Name, "Delegated to the plant expert agent."))
			return StateSpecialistAct, nil
		}
	}
	return StateDone, nil
}

// specialistAct asks the specialist for a response, possibly with tool
// calls.
func (m *Machine) specialistAct(ctx context.Context, conv *Conversation, stream provider.StreamFunc) (State, error) {
	reply, err := m.chatWithRetry(ctx, conv.SessionID, specialistPrompt, conv.Messages, m.registry.Specs(), stream)
	if err != nil {
		return StateDone, err
	}
	conv.Messages = append(conv.Messages, reply.Message)

	if len(reply.Message.ToolCalls) > 0 {
		return StateToolExec, nil
	}
	return StateDone, nil
}

// toolExec runs every pending tool call from the last assistant message,
// sequentially in call order. A failing call is contained: its error
// becomes a failure-flagged tool message and later calls still run.
func (m *Machine) toolExec(ctx context.Context, conv *Conversation) (State, error) {
	last := conv.Messages[len(conv.Messages)-1]
	ctx = tools.ContextWithSessionID(ctx, conv.SessionID)

	for _, call := range last.ToolCalls {
		out, err := m.registry.Execute(ctx, call)
		if err != nil {
			m.logger.Error("tool call failed",
				"tool", call.Name, "session_id", conv.SessionID, "error", err)
			out = fmt.Sprintf("Tool call failed: %v", err)
		}
		conv.Messages = append(conv.Messages, provider.ToolMessage(call.ID, call.Name, out))
	}
	return StateSpecialistAct, nil
}

// chatWithRetry performs one LLM call with the windowed history, retrying
// transient failures up to the configured attempt count with no reduction
// in message content between attempts.
func (m *Machine) chatWithRetry(ctx context.Context, sessionID, system string, history []provider.Message, specs []provider.ToolSpec, stream provider.StreamFunc) (*provider.Reply, error) {
	messages := make([]provider.Message, 0, m.maxHistory+1)
	messages = append(messages, provider.SystemMessage(system))
	messages = append(messages, windowHistory(history, m.maxHistory)...)

	if stream != nil {
		stream = m.skipFragmentErrors(stream)
	}

	var lastErr error
	delay := m.retry.InitialInterval

	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		// Rate limit each attempt, not just the first.
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		start := time.Now()
		var reply *provider.Reply
		var err error
		if stream != nil {
			reply, err = m.llm.ChatStream(ctx, messages, specs, stream)
		} else {
			reply, err = m.llm.Chat(ctx, messages, specs)
		}
		elapsed := time.Since(start)

		if err == nil {
			m.recorder.RecordLLMCall(sessionID, m.llm.Model(),
				reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.Usage.Cost,
				elapsed, stream != nil)
			m.logger.Debug("llm response generated",
				"session_id", sessionID, "attempts", attempt, "elapsed", elapsed)
			return reply, nil
		}

		lastErr = err
		if !provider.Retryable(err) {
			return nil, fmt.Errorf("llm call: %w", err)
		}
		m.logger.Warn("llm call failed",
			"session_id", sessionID, "attempt", attempt,
			"max_attempts", m.retry.MaxAttempts, "error", err)

		if attempt == m.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, m.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts, last error: %v", ErrRetriesExhausted, m.retry.MaxAttempts, lastErr)
}

// skipFragmentErrors wraps a stream callback so a failure on one fragment
// does not terminate the stream.
func (m *Machine) skipFragmentErrors(fn provider.StreamFunc) provider.StreamFunc {
	return func(ctx context.Context, fragment string) error {
		if err := fn(ctx, fragment); err != nil {
			m.logger.Warn("stream fragment dropped", "error", err)
		}
		return nil
	}
}

// windowHistory keeps the most recent max messages. Content is never
// reduced within a call; the window only bounds how far back it reaches.
func windowHistory(history []provider.Message, max int) []provider.Message {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
