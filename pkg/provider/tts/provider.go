// Package tts defines the Provider interface for Text-to-Speech backends.
//
// Synthesis is batch-oriented: the pipeline hands each finalized text
// segment to Synthesize and receives a complete audio container back. Frame
// packetization for the wire happens downstream in the audio package, so
// providers only need to return whatever container their service produces —
// in practice a RIFF/WAVE file that audio.DecodeWAV accepts.
//
// Implementations must be safe for concurrent use; segments from different
// sessions are synthesised in parallel.
package tts

import "context"

// Voice describes the voice configuration for synthesis.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g.,
	// "BV001_streaming", "alloy").
	ID string

	// Name is an optional human-readable voice name.
	Name string

	// SpeedRatio adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedRatio float64

	// VolumeRatio adjusts loudness (0.5–2.0, 0 = provider default).
	VolumeRatio float64

	// PitchRatio adjusts pitch (0.5–2.0, 0 = provider default).
	PitchRatio float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns audio
	// container bytes (WAV unless the implementation documents otherwise).
	// Returns an error if synthesis fails or ctx is cancelled; on error no
	// partial audio is returned.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}
