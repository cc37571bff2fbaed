package config_test

import (
	"testing"

	"github.com/calliope-voice/calliope/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Pipeline: config.PipelineConfig{
			SystemPrompt: "You are a helpful assistant.",
			Hotwords:     []string{"Eldrinax", "living room light"},
			Voice:        config.VoiceConfig{VoiceID: "BV001_streaming", SpeedRatio: 1.0},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if d.Any() {
		t.Errorf("diff of identical configs: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff: %+v", d)
	}
	if d.SystemPromptChanged || d.HotwordsChanged || d.VoiceChanged {
		t.Errorf("unrelated changes flagged: %+v", d)
	}
}

func TestDiff_SystemPrompt(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Pipeline.SystemPrompt = "You are a grumpy assistant."

	d := config.Diff(old, new)
	if !d.SystemPromptChanged {
		t.Errorf("diff: %+v", d)
	}
}

func TestDiff_Hotwords(t *testing.T) {
	old := baseConfig()

	reordered := baseConfig()
	reordered.Pipeline.Hotwords = []string{"living room light", "Eldrinax"}
	if d := config.Diff(old, reordered); !d.HotwordsChanged {
		t.Errorf("reorder not detected: %+v", d)
	}

	extended := baseConfig()
	extended.Pipeline.Hotwords = append(extended.Pipeline.Hotwords, "kitchen fan")
	if d := config.Diff(old, extended); !d.HotwordsChanged {
		t.Errorf("addition not detected: %+v", d)
	}
}

func TestDiff_Voice(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Pipeline.Voice.SpeedRatio = 1.3

	d := config.Diff(old, new)
	if !d.VoiceChanged {
		t.Errorf("diff: %+v", d)
	}
	if !d.Any() {
		t.Error("Any() false with voice change")
	}
}
