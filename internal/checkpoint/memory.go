package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/verdantlabs/verdant/internal/provider"
)

// MemoryStore is a non-durable Store. It backs unit tests and the
// production degraded mode where conversations stay usable but are not
// resumable across restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[sessionID]
	if !ok {
		return nil, nil
	}
	copied := &State{
		SessionID: state.SessionID,
		Messages:  append([]provider.Message(nil), state.Messages...),
		UpdatedAt: state.UpdatedAt,
	}
	return copied, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.SessionID] = &State{
		SessionID: state.SessionID,
		Messages:  append([]provider.Message(nil), state.Messages...),
		UpdatedAt: time.Now(),
	}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}
