package audio

import (
	"errors"
	"fmt"
	"time"

	"layeh.com/gopus"
)

// ErrEncode is returned when the Opus compressor fails mid-stream. The whole
// invocation fails atomically; no partial frame sequence is returned.
var ErrEncode = errors.New("audio: opus encode failed")

// ErrInvalidConfig is returned by NewFrameEncoder for zero or negative frame
// duration, sample rate or bitrate. Rejected before any processing begins.
var ErrInvalidConfig = errors.New("audio: invalid encoder configuration")

// EncodedFrame is one compressed, independently decodable audio frame.
// Frames are emitted in strict time order, one per canonical window.
type EncodedFrame struct {
	// Data is the Opus packet for this frame.
	Data []byte

	// Duration is the playback duration of the frame. Every frame of a
	// sequence carries the same value (the final window is zero-padded to
	// full length before encoding).
	Duration time.Duration
}

// EncoderConfig holds the fixed parameters of a FrameEncoder. The zero value
// is not valid; use [DefaultEncoderConfig] as a starting point.
type EncoderConfig struct {
	// FrameDurationMs is the duration of each window in milliseconds.
	FrameDurationMs int

	// SampleRate is the canonical sample rate in Hz. Input buffers are
	// resampled to this rate before windowing.
	SampleRate int

	// Bitrate is the target Opus bitrate in bits/s. Zero keeps the codec
	// default. Fixed per encoder so identical input produces identical output.
	Bitrate int
}

// DefaultEncoderConfig returns the canonical configuration: 60 ms frames at
// 16 kHz mono.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		FrameDurationMs: DefaultFrameDurationMs,
		SampleRate:      CanonicalSampleRate,
	}
}

// FrameEncoder turns a decoded audio buffer into a sequence of fixed-duration
// Opus frames suitable for real-time delivery. Create one per synthesis
// request; an encoder must not be shared across concurrent requests.
//
// Each [FrameEncoder.Encode] call runs a fresh Opus encoder instance over all
// windows of the buffer in order — codec state is continuous within one call
// and never carried between calls, so identical input and configuration
// always produce a byte-identical frame sequence.
type FrameEncoder struct {
	cfg          EncoderConfig
	frameSamples int
}

// NewFrameEncoder validates cfg and returns a ready encoder.
// frame_size_samples = sample_rate * frame_duration_ms / 1000.
func NewFrameEncoder(cfg EncoderConfig) (*FrameEncoder, error) {
	if cfg.FrameDurationMs <= 0 {
		return nil, fmt.Errorf("%w: frame duration %dms", ErrInvalidConfig, cfg.FrameDurationMs)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %dHz", ErrInvalidConfig, cfg.SampleRate)
	}
	if cfg.Bitrate < 0 {
		return nil, fmt.Errorf("%w: bitrate %d", ErrInvalidConfig, cfg.Bitrate)
	}
	return &FrameEncoder{
		cfg:          cfg,
		frameSamples: cfg.SampleRate * cfg.FrameDurationMs / 1000,
	}, nil
}

// FrameDuration returns the configured duration of one frame.
func (e *FrameEncoder) FrameDuration() time.Duration {
	return time.Duration(e.cfg.FrameDurationMs) * time.Millisecond
}

// FrameSamples returns the number of samples in one full window.
func (e *FrameEncoder) FrameSamples() int {
	return e.frameSamples
}

// Encode canonicalizes b, slices it into consecutive non-overlapping windows
// of FrameSamples samples (the final window zero-padded on the right), and
// compresses each window independently. It returns the ordered frame
// sequence together with the true input duration in seconds, computed from
// the canonical sample count before padding.
//
// On any canonicalization or compression error the whole operation fails and
// no frames are returned.
func (e *FrameEncoder) Encode(b Buffer) ([]EncodedFrame, float64, error) {
	canonical, err := Canonicalize(b)
	if err != nil {
		return nil, 0, err
	}

	// Duration reflects the real input, not the padded tail.
	duration := canonical.Duration()

	samples := bytesToInt16s(canonical.Data)
	if len(samples) == 0 {
		return nil, 0, nil
	}

	enc, err := gopus.NewEncoder(e.cfg.SampleRate, CanonicalChannels, gopus.Audio)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: create encoder: %v", ErrEncode, err)
	}
	if e.cfg.Bitrate > 0 {
		enc.SetBitrate(e.cfg.Bitrate)
	}

	frameDur := e.FrameDuration()
	frames := make([]EncodedFrame, 0, (len(samples)+e.frameSamples-1)/e.frameSamples)

	for start := 0; start < len(samples); start += e.frameSamples {
		end := start + e.frameSamples
		var window []int16
		if end <= len(samples) {
			window = samples[start:end]
		} else {
			// Final partial window: zero-pad on the right.
			window = make([]int16, e.frameSamples)
			copy(window, samples[start:])
		}

		packet, err := enc.Encode(window, e.frameSamples, e.frameSamples*2)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: frame %d: %v", ErrEncode, len(frames), err)
		}
		frames = append(frames, EncodedFrame{Data: packet, Duration: frameDur})
	}

	return frames, duration, nil
}

// EncodeContainer decodes WAV container bytes and encodes the result. It is
// the one-call path used by the synthesis pipeline: TTS output in, frame
// sequence out. Decode failures propagate as [ErrUnsupportedAudio].
func (e *FrameEncoder) EncodeContainer(container []byte) ([]EncodedFrame, float64, error) {
	buf, err := DecodeWAV(container)
	if err != nil {
		return nil, 0, err
	}
	return e.Encode(buf)
}
