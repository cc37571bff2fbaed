// Package audio provides the PCM plumbing for the voice pipeline: WAV
// parsing, canonical-format conversion, and Opus frame encoding and
// decoding.
package audio

// Canonical format required by the frame encoder. All synthesized audio is
// normalised to this format before windowing, regardless of what the TTS
// backend produced.
const (
	// CanonicalSampleRate is the sample rate of canonical audio in Hz.
	CanonicalSampleRate = 16000

	// CanonicalChannels is the channel count of canonical audio.
	CanonicalChannels = 1

	// DefaultFrameDurationMs is the duration of one encoded frame in
	// milliseconds. Exposed so consumers can reconstruct playback timing
	// without re-deriving it from frame count and sample rate.
	DefaultFrameDurationMs = 60
)

// Buffer holds decoded PCM audio together with its format metadata.
// Data is 16-bit signed little-endian PCM with interleaved channels.
// A Buffer is created once by a decoder and never mutated afterwards.
type Buffer struct {
	// PCM audio data, 2 bytes per sample per channel, little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 24000 for OpenAI TTS output, 16000 canonical).
	SampleRate int

	// Channels is the number of interleaved channels. 1 = mono, 2 = stereo.
	Channels int
}

// Samples returns the number of samples per channel held in the buffer.
func (b Buffer) Samples() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / 2 / b.Channels
}

// Duration returns the buffer's playback duration in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Samples()) / float64(b.SampleRate)
}
