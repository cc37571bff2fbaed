// Package asr defines the Provider interface for Automatic Speech Recognition
// backends.
//
// Recognition is batch-oriented: the gateway accumulates one utterance worth
// of PCM under VAD control and hands the whole buffer to Transcribe at once.
// This matches how Whisper-family engines work — they are not incremental
// decoders — and keeps the provider contract to a single blocking call that
// honours context cancellation.
//
// Implementations must be safe for concurrent use; the server transcribes
// utterances from many connections in parallel.
package asr

import (
	"context"

	"github.com/calliope-voice/calliope/pkg/audio"
)

// Transcript is the recognition result for one utterance.
type Transcript struct {
	// Text is the recognised text, whitespace-trimmed. Empty when the
	// provider heard nothing intelligible.
	Text string

	// Language is the BCP-47 code of the detected or configured language
	// (e.g., "en", "zh"). May be empty if the backend does not report it.
	Language string
}

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	// Transcribe recognises a complete utterance. The buffer carries its own
	// format; implementations canonicalize as needed. Returns an error if
	// recognition fails or ctx is cancelled; a silent buffer yields an empty
	// Transcript and nil error.
	Transcribe(ctx context.Context, buf audio.Buffer) (Transcript, error)
}
