package resilience

import (
	"context"

	"github.com/calliope-voice/calliope/pkg/audio"
	"github.com/calliope-voice/calliope/pkg/provider/asr"
)

// ASRFallback implements [asr.Provider] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker;
// when the primary fails or its breaker is open, the next healthy fallback
// is tried.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred backend.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional ASR provider as a fallback.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the utterance to the first healthy provider and returns
// its transcript. If the primary fails, subsequent fallbacks are tried.
func (f *ASRFallback) Transcribe(ctx context.Context, buf audio.Buffer) (asr.Transcript, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) (asr.Transcript, error) {
		return p.Transcribe(ctx, buf)
	})
}
