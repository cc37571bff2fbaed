package config_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/calliope-voice/calliope/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9000"
  log_level: info
  auth_tokens:
    - device-token-1
providers:
  vad:
    name: energy
  asr:
    name: whisper
    api_key: sk-test
    model: whisper-1
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
    fallbacks:
      - name: ollama
        base_url: http://localhost:11434
        model: llama3
  tts:
    name: volcano
    api_key: volc-token
    options:
      appid: "12345"
      cluster: volcano_tts
pipeline:
  frame_duration_ms: 60
  sample_rate: 16000
  system_prompt: "You are a helpful assistant."
  voice:
    voice_id: BV001_streaming
    speed_ratio: 1.1
  hotwords:
    - living room light
    - Eldrinax
dialogue:
  postgres_dsn: "postgres://localhost/calliope"
  history_limit: 20
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.TTS.Options["cluster"] != "volcano_tts" {
		t.Errorf("tts options: got %v", cfg.Providers.TTS.Options)
	}
	if len(cfg.Providers.LLM.Fallbacks) != 1 || cfg.Providers.LLM.Fallbacks[0].Name != "ollama" {
		t.Errorf("llm fallbacks: got %+v", cfg.Providers.LLM.Fallbacks)
	}
	if len(cfg.Pipeline.Hotwords) != 2 {
		t.Errorf("hotwords: got %v", cfg.Pipeline.Hotwords)
	}
	if cfg.Pipeline.Voice.SpeedRatio != 1.1 {
		t.Errorf("speed_ratio: got %v", cfg.Pipeline.Voice.SpeedRatio)
	}
	if cfg.Dialogue.HistoryLimit != 20 {
		t.Errorf("history_limit: got %d", cfg.Dialogue.HistoryLimit)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	yaml := `
providers:
  asr:
    name: whisper
  llm:
    name: openai
  tts:
    name: openai
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr default: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Pipeline.FrameDurationMs != config.DefaultFrameDurationMs {
		t.Errorf("frame_duration_ms default: got %d", cfg.Pipeline.FrameDurationMs)
	}
	if cfg.Pipeline.SampleRate != config.DefaultSampleRate {
		t.Errorf("sample_rate default: got %d", cfg.Pipeline.SampleRate)
	}
	if cfg.Pipeline.MinUtteranceFrames != config.DefaultMinUtteranceFrames {
		t.Errorf("min_utterance_frames default: got %d", cfg.Pipeline.MinUtteranceFrames)
	}
	if cfg.Pipeline.CloseTimeoutS != config.DefaultCloseTimeoutS {
		t.Errorf("close_timeout_s default: got %d", cfg.Pipeline.CloseTimeoutS)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9000"
  unknown_field: true
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "bananas" },
			wantSub: "server.log_level",
		},
		{
			name:    "empty auth token",
			mutate:  func(c *config.Config) { c.Server.AuthTokens = []string{"ok", ""} },
			wantSub: "server.auth_tokens[1]",
		},
		{
			name:    "negative frame duration",
			mutate:  func(c *config.Config) { c.Pipeline.FrameDurationMs = -1 },
			wantSub: "pipeline.frame_duration_ms",
		},
		{
			name:    "negative sample rate",
			mutate:  func(c *config.Config) { c.Pipeline.SampleRate = -16000 },
			wantSub: "pipeline.sample_rate",
		},
		{
			name:    "speed ratio out of range",
			mutate:  func(c *config.Config) { c.Pipeline.Voice.SpeedRatio = 3.0 },
			wantSub: "pipeline.voice.speed_ratio",
		},
		{
			name:    "duplicate hotword",
			mutate:  func(c *config.Config) { c.Pipeline.Hotwords = []string{"lamp", "lamp"} },
			wantSub: "duplicate",
		},
		{
			name:    "negative history limit",
			mutate:  func(c *config.Config) { c.Dialogue.HistoryLimit = -5 },
			wantSub: "dialogue.history_limit",
		},
		{
			name:    "missing llm provider",
			mutate:  func(c *config.Config) { c.Providers.LLM.Name = "" },
			wantSub: "providers.llm.name is required",
		},
		{
			name: "fallback without name",
			mutate: func(c *config.Config) {
				c.Providers.TTS.Fallbacks = []config.ProviderEntry{{APIKey: "sk-fallback"}}
			},
			wantSub: "providers.tts.fallbacks[0].name is required",
		},
		{
			name: "nested fallbacks rejected",
			mutate: func(c *config.Config) {
				c.Providers.LLM.Fallbacks = []config.ProviderEntry{{
					Name:      "ollama",
					Fallbacks: []config.ProviderEntry{{Name: "groq"}},
				}}
			},
			wantSub: "nested fallbacks",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tc.mutate(cfg)
			err = config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	cfg.Server.LogLevel = "loud"
	cfg.Pipeline.Voice.PitchRatio = 9.9

	verr := config.Validate(cfg)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	for _, sub := range []string{"server.log_level", "pipeline.voice.pitch_ratio"} {
		if !strings.Contains(verr.Error(), sub) {
			t.Errorf("joined error missing %q: %v", sub, verr)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap the open failure: %v", err)
	}
}
