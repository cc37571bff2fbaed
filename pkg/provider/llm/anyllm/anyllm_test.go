package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/calliope-voice/calliope/pkg/provider/llm"
)

func TestConvertMessage_System(t *testing.T) {
	got := convertMessage(llm.Message{Role: "system", Content: "You are helpful."})
	if got.Role != anyllmlib.RoleSystem {
		t.Errorf("expected role system, got %q", got.Role)
	}
	if got.ContentString() != "You are helpful." {
		t.Errorf("unexpected content %q", got.ContentString())
	}
}

func TestConvertMessage_User(t *testing.T) {
	got := convertMessage(llm.Message{Role: "user", Content: "Hello!"})
	if got.Role != anyllmlib.RoleUser {
		t.Errorf("expected role user, got %q", got.Role)
	}
	if got.ContentString() != "Hello!" {
		t.Errorf("unexpected content %q", got.ContentString())
	}
}

func TestConvertMessage_Assistant(t *testing.T) {
	got := convertMessage(llm.Message{Role: "assistant", Content: "Hi there!"})
	if got.Role != anyllmlib.RoleAssistant {
		t.Errorf("expected role assistant, got %q", got.Role)
	}
}

func TestConvertMessage_UnknownRoleFallsBackToUser(t *testing.T) {
	got := convertMessage(llm.Message{Role: "narrator", Content: "..."})
	if got.Role != anyllmlib.RoleUser {
		t.Errorf("expected fallback to user, got %q", got.Role)
	}
}

func TestBuildParams_SystemPromptPrepended(t *testing.T) {
	p := &Provider{model: "test-model"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages: []llm.Message{
			{Role: "user", Content: "hi"},
		},
	})

	if params.Model != "test-model" {
		t.Errorf("model: got %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("message count: got %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first message role: got %q, want system", params.Messages[0].Role)
	}
	if params.Messages[0].ContentString() != "Be brief." {
		t.Errorf("system content: got %q", params.Messages[0].ContentString())
	}
}

func TestBuildParams_OptionalFields(t *testing.T) {
	p := &Provider{model: "m"}

	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "x"}},
		Temperature: 0.7,
		MaxTokens:   128,
	})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature not forwarded: %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 128 {
		t.Errorf("max tokens not forwarded: %v", params.MaxTokens)
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "x"}},
	})
	if params.Temperature != nil {
		t.Error("zero temperature should use provider default")
	}
	if params.MaxTokens != nil {
		t.Error("zero max tokens should use provider default")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "model"); err == nil {
		t.Error("empty provider name accepted")
	}
	if _, err := New("ollama", ""); err == nil {
		t.Error("empty model accepted")
	}
	if _, err := New("not-a-provider", "model"); err == nil {
		t.Error("unsupported provider accepted")
	}
}
