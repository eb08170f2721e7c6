// Package checkpoint persists conversation state between turns, keyed by
// session id. The postgres store is the durable implementation; the
// memory store backs tests and the production-only degraded mode where
// the database is unreachable.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/verdantlabs/verdant/internal/provider"
)

// ErrUnavailable indicates the checkpoint storage cannot be reached.
// Fatal at startup except in the production environment.
var ErrUnavailable = errors.New("checkpoint storage unavailable")

// State is the durable snapshot of one session's conversation.
type State struct {
	SessionID string
	Messages  []provider.Message
	UpdatedAt time.Time
}

// Store is the persistence contract for conversation state.
type Store interface {
	// Load returns the state for a session, or nil when the session has
	// no persisted state yet.
	Load(ctx context.Context, sessionID string) (*State, error)

	// Save persists the state. Messages are append-only between saves;
	// rewriting history requires Clear first.
	Save(ctx context.Context, state *State) error

	// Clear deletes all persisted rows for the session across every
	// checkpoint table.
	Clear(ctx context.Context, sessionID string) error
}
