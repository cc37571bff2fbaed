// Package postgres provides a PostgreSQL-backed DialogueStore on a
// [pgxpool.Pool] connection pool.
//
// Usage:
//
//	s, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
//
//	_ = s.Append(ctx, sessionID, msg)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calliope-voice/calliope/internal/store"
)

const ddlDialogueMessages = `
CREATE TABLE IF NOT EXISTS dialogue_messages (
    id         BIGSERIAL    PRIMARY KEY,
    session_id TEXT         NOT NULL,
    role       TEXT         NOT NULL,
    content    TEXT         NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dialogue_messages_session
    ON dialogue_messages (session_id, id);
`

// Store is a PostgreSQL implementation of store.DialogueStore.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database, runs the schema bootstrap, and returns a
// ready Store. The caller must call Close when done.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("dialogue store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("dialogue store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlDialogueMessages); err != nil {
		pool.Close()
		return nil, fmt.Errorf("dialogue store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Append implements store.DialogueStore.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...store.Message) error {
	const q = `
		INSERT INTO dialogue_messages (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`

	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := s.pool.Exec(ctx, q, sessionID, m.Role, m.Content, createdAt); err != nil {
			return fmt.Errorf("dialogue store: append: %w", err)
		}
	}
	return nil
}

// History implements store.DialogueStore. The most recent limit messages
// are returned in chronological order (oldest first).
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	q := `
		SELECT role, content, created_at
		FROM   dialogue_messages
		WHERE  session_id = $1
		ORDER  BY id DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("dialogue store: history: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Message, error) {
		var m store.Message
		err := row.Scan(&m.Role, &m.Content, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue store: scan history: %w", err)
	}

	// Query order is newest-first so LIMIT keeps the tail; flip it.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Clear implements store.DialogueStore.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dialogue_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("dialogue store: clear: %w", err)
	}
	return nil
}

// Ensure Store implements store.DialogueStore at compile time.
var _ store.DialogueStore = (*Store)(nil)
