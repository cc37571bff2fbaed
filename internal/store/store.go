// Package store defines dialogue history persistence.
//
// Each connected device carries one conversation. The history feeds the
// language model's context on every turn, so reads are ordered and bounded;
// writes happen once per user utterance and once per completed reply.
package store

import (
	"context"
	"time"
)

// Message is one dialogue turn.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string

	// CreatedAt is when the message was stored. Implementations set it on
	// Append when zero.
	CreatedAt time.Time
}

// DialogueStore persists per-session conversation history.
//
// Implementations must be safe for concurrent use.
type DialogueStore interface {
	// Append stores msgs under sessionID in order.
	Append(ctx context.Context, sessionID string, msgs ...Message) error

	// History returns the most recent messages for sessionID in
	// chronological order (oldest first). limit <= 0 returns everything.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Clear removes all history for sessionID.
	Clear(ctx context.Context, sessionID string) error
}
