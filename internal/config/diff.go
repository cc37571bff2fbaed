package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// network changes require a restart.
type ConfigDiff struct {
	LogLevelChanged     bool
	NewLogLevel         LogLevel
	SystemPromptChanged bool
	HotwordsChanged     bool
	VoiceChanged        bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SystemPromptChanged || d.HotwordsChanged || d.VoiceChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: new sessions
// pick them up on their next turn, established sessions keep their providers.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Pipeline.SystemPrompt != new.Pipeline.SystemPrompt {
		d.SystemPromptChanged = true
	}
	if !slices.Equal(old.Pipeline.Hotwords, new.Pipeline.Hotwords) {
		d.HotwordsChanged = true
	}
	if old.Pipeline.Voice != new.Pipeline.Voice {
		d.VoiceChanged = true
	}

	return d
}
