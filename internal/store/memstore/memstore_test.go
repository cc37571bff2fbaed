package memstore_test

import (
	"context"
	"testing"

	"github.com/calliope-voice/calliope/internal/store"
	"github.com/calliope-voice/calliope/internal/store/memstore"
)

func TestAppendAndHistory(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	err := s.Append(ctx, "sess-1",
		store.Message{Role: "user", Content: "hello"},
		store.Message{Role: "assistant", Content: "hi!"},
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.History(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history length: got %d, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi!" {
		t.Errorf("order wrong: %v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set on append")
	}
}

func TestHistory_Limit(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for i := 0; i < 5; i++ {
		s.Append(ctx, "sess-1", store.Message{Role: "user", Content: string(rune('a' + i))})
	}

	got, err := s.History(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history length: got %d, want 2", len(got))
	}
	// Limit keeps the most recent messages.
	if got[0].Content != "d" || got[1].Content != "e" {
		t.Errorf("limited history: %v", got)
	}
}

func TestHistory_SessionsIsolated(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Append(ctx, "a", store.Message{Role: "user", Content: "for a"})
	s.Append(ctx, "b", store.Message{Role: "user", Content: "for b"})

	got, _ := s.History(ctx, "a", 0)
	if len(got) != 1 || got[0].Content != "for a" {
		t.Errorf("session a history: %v", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Append(ctx, "sess-1", store.Message{Role: "user", Content: "x"})

	if err := s.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ := s.History(ctx, "sess-1", 0)
	if len(got) != 0 {
		t.Errorf("history after clear: %v", got)
	}
}

func TestHistory_CopyIsDetached(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Append(ctx, "sess-1", store.Message{Role: "user", Content: "x"})

	got, _ := s.History(ctx, "sess-1", 0)
	got[0].Content = "mutated"

	again, _ := s.History(ctx, "sess-1", 0)
	if again[0].Content != "x" {
		t.Error("History returned a live reference to internal state")
	}
}
