package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/provider"
)

// PostgresStore persists conversation state in two tables: one state row
// per session in conversation_checkpoints and one ordered row per message
// in conversation_messages.
//
// Saves for the same session are serialized through a row lock on the
// checkpoint row, so two turns racing on one session cannot interleave
// their message sequences.
type PostgresStore struct {
	pool   *pgxpool.Pool
	tables []string // swept by Clear; names validated at config load
	logger log.Logger
}

// NewPostgresStore verifies connectivity and returns the store. An
// unreachable database surfaces as ErrUnavailable so the caller can apply
// the environment-dependent degradation policy.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, tables []string, logger log.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &PostgresStore{
		pool:   pool,
		tables: tables,
		logger: logger.With("component", "checkpoint"),
	}, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*State, error) {
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT updated_at FROM conversation_checkpoints WHERE session_id = $1`,
		sessionID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint for %s: %w", sessionID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM conversation_messages WHERE session_id = $1 ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	state := &State{SessionID: sessionID, UpdatedAt: updatedAt}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		var msg provider.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		state.Messages = append(state.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return state, nil
}

// Save implements Store. New messages are appended after the current
// high-water sequence; previously saved messages are never rewritten.
func (s *PostgresStore) Save(ctx context.Context, state *State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning checkpoint transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("checkpoint rollback", "error", rbErr)
		}
	}()

	// Upsert-then-lock serializes concurrent saves for one session.
	_, err = tx.Exec(ctx,
		`INSERT INTO conversation_checkpoints (session_id, updated_at)
		 VALUES ($1, now())
		 ON CONFLICT (session_id) DO UPDATE SET updated_at = now()`,
		state.SessionID)
	if err != nil {
		return fmt.Errorf("upserting checkpoint row: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`SELECT session_id FROM conversation_checkpoints WHERE session_id = $1 FOR UPDATE`,
		state.SessionID); err != nil {
		return fmt.Errorf("locking checkpoint row: %w", err)
	}

	var saved int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM conversation_messages WHERE session_id = $1`,
		state.SessionID).Scan(&saved); err != nil {
		return fmt.Errorf("counting saved messages: %w", err)
	}
	if saved > len(state.Messages) {
		return fmt.Errorf("checkpoint for %s has %d messages, state has %d: history may only grow",
			state.SessionID, saved, len(state.Messages))
	}

	for seq := saved; seq < len(state.Messages); seq++ {
		payload, err := json.Marshal(state.Messages[seq])
		if err != nil {
			return fmt.Errorf("encoding message %d: %w", seq, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_messages (session_id, seq, payload) VALUES ($1, $2, $3)`,
			state.SessionID, seq, payload); err != nil {
			return fmt.Errorf("inserting message %d: %w", seq, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint saved", "session_id", state.SessionID, "appended", len(state.Messages)-saved)
	return nil
}

// Clear implements Store, deleting the session's rows from every
// configured checkpoint table. All tables are attempted; the first
// failure is returned after the sweep so partial success is never silent.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	var firstErr error
	for _, table := range s.tables {
		// Table names come from validated config, not request input.
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, table)
		if _, err := s.pool.Exec(ctx, stmt, sessionID); err != nil {
			s.logger.Error("clearing checkpoint table failed",
				"table", table, "session_id", sessionID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("clearing %s: %w", table, err)
			}
		}
	}
	return firstErr
}
