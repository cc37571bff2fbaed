// Package memstore provides an in-memory DialogueStore for single-process
// deployments and tests. History is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/calliope-voice/calliope/internal/store"
)

// Store is an in-memory implementation of store.DialogueStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]store.Message
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string][]store.Message)}
}

// Append implements store.DialogueStore.
func (s *Store) Append(ctx context.Context, sessionID string, msgs ...store.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		s.sessions[sessionID] = append(s.sessions[sessionID], m)
	}
	return nil
}

// History implements store.DialogueStore.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]store.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear implements store.DialogueStore.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Ensure Store implements store.DialogueStore at compile time.
var _ store.DialogueStore = (*Store)(nil)
