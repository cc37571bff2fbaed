package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad": {"energy"},
	"asr": {"whisper", "whisper-native"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts": {"volcano", "openai"},
}

// Defaults applied by [Validate] when the corresponding field is unset.
const (
	DefaultListenAddr         = ":8000"
	DefaultFrameDurationMs    = 60
	DefaultSampleRate         = 16000
	DefaultMinUtteranceFrames = 3
	DefaultCloseTimeoutS      = 120
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	for i, tok := range cfg.Server.AuthTokens {
		if tok == "" {
			errs = append(errs, fmt.Errorf("server.auth_tokens[%d] is empty", i))
		}
	}
	if len(cfg.Server.AuthTokens) == 0 {
		slog.Warn("server.auth_tokens is empty; all connections will be accepted without authentication")
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Fallback chains are one level deep and every entry needs a name.
	for kind, entry := range map[string]ProviderEntry{
		"vad": cfg.Providers.VAD,
		"asr": cfg.Providers.ASR,
		"llm": cfg.Providers.LLM,
		"tts": cfg.Providers.TTS,
	} {
		for i, fb := range entry.Fallbacks {
			if fb.Name == "" {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			}
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d] must not declare nested fallbacks", kind, i))
			}
			validateProviderName(kind, fb.Name)
		}
	}

	// A dialogue turn needs all three reply stages.
	for _, stage := range []struct {
		kind string
		name string
	}{
		{"asr", cfg.Providers.ASR.Name},
		{"llm", cfg.Providers.LLM.Name},
		{"tts", cfg.Providers.TTS.Name},
	} {
		if stage.name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", stage.kind))
		}
	}

	// Pipeline
	p := &cfg.Pipeline
	if p.FrameDurationMs == 0 {
		p.FrameDurationMs = DefaultFrameDurationMs
	}
	if p.FrameDurationMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.frame_duration_ms %d must be positive", p.FrameDurationMs))
	}
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	if p.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("pipeline.sample_rate %d must be positive", p.SampleRate))
	}
	if p.Bitrate < 0 {
		errs = append(errs, fmt.Errorf("pipeline.bitrate %d must not be negative", p.Bitrate))
	}
	if p.MinUtteranceFrames == 0 {
		p.MinUtteranceFrames = DefaultMinUtteranceFrames
	}
	if p.CloseTimeoutS == 0 {
		p.CloseTimeoutS = DefaultCloseTimeoutS
	}
	if p.CloseTimeoutS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.close_timeout_s %d must be positive", p.CloseTimeoutS))
	}
	errs = append(errs, validateRatio("pipeline.voice.speed_ratio", p.Voice.SpeedRatio)...)
	errs = append(errs, validateRatio("pipeline.voice.volume_ratio", p.Voice.VolumeRatio)...)
	errs = append(errs, validateRatio("pipeline.voice.pitch_ratio", p.Voice.PitchRatio)...)

	hotwordsSeen := make(map[string]int, len(p.Hotwords))
	for i, hw := range p.Hotwords {
		if hw == "" {
			errs = append(errs, fmt.Errorf("pipeline.hotwords[%d] is empty", i))
			continue
		}
		if prev, ok := hotwordsSeen[hw]; ok {
			errs = append(errs, fmt.Errorf("pipeline.hotwords[%d] %q is a duplicate of hotwords[%d]", i, hw, prev))
		}
		hotwordsSeen[hw] = i
	}

	// Dialogue
	if cfg.Dialogue.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("dialogue.history_limit %d must not be negative", cfg.Dialogue.HistoryLimit))
	}
	if cfg.Dialogue.PostgresDSN == "" {
		slog.Warn("dialogue.postgres_dsn is empty; conversation history will not survive restarts")
	}

	return errors.Join(errs...)
}

// validateRatio checks a voice ratio against the [0.5, 2.0] range. Zero means
// provider default and is always accepted.
func validateRatio(field string, v float64) []error {
	if v == 0 {
		return nil
	}
	if v < 0.5 || v > 2.0 {
		return []error{fmt.Errorf("%s %.2f is out of range [0.5, 2.0]", field, v)}
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
