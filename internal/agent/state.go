// Package agent implements the conversation orchestration engine: a
// supervisor/specialist state machine with bounded LLM retries,
// sequential tool execution, streaming, and checkpointed session state.
package agent

import (
	"errors"

	"github.com/verdantlabs/verdant/internal/provider"
)

// State names one position in the conversation state machine.
type State string

const (
	// StateRoute is the supervising controller deciding whether to
	// answer directly or delegate to the specialist.
	StateRoute State = "ROUTE"

	// StateSpecialistAct is the specialist proposing a response,
	// possibly with tool calls.
	StateSpecialistAct State = "SPECIALIST_ACT"

	// StateToolExec executes the pending tool calls from the last
	// assistant message.
	StateToolExec State = "TOOL_EXEC"

	// StateDone is terminal.
	StateDone State = "DONE"
)

// ErrRetriesExhausted indicates every LLM attempt for one call failed.
// Terminal: the turn surfaces it instead of degrading to a partial answer.
var ErrRetriesExhausted = errors.New("llm retries exhausted")

// Conversation is the per-session aggregate the machine mutates during a
// turn. Messages are append-only within the turn; StepsLeft decrements on
// every hop and forces DONE at zero.
type Conversation struct {
	SessionID string
	Messages  []provider.Message
	StepsLeft int
}
