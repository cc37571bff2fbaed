package audio_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/calliope-voice/calliope/pkg/audio"
)

// sineBuffer generates a mono 16 kHz test tone with the given sample count.
func sineBuffer(samples int) audio.Buffer {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.Buffer{
		Data:       samplesToBytes(pcm),
		SampleRate: audio.CanonicalSampleRate,
		Channels:   audio.CanonicalChannels,
	}
}

func TestNewFrameEncoder_InvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  audio.EncoderConfig
	}{
		{"zero frame duration", audio.EncoderConfig{FrameDurationMs: 0, SampleRate: 16000}},
		{"negative frame duration", audio.EncoderConfig{FrameDurationMs: -60, SampleRate: 16000}},
		{"zero sample rate", audio.EncoderConfig{FrameDurationMs: 60, SampleRate: 0}},
		{"negative bitrate", audio.EncoderConfig{FrameDurationMs: 60, SampleRate: 16000, Bitrate: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := audio.NewFrameEncoder(tc.cfg); !errors.Is(err, audio.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestFrameEncoder_WindowCount(t *testing.T) {
	enc, err := audio.NewFrameEncoder(audio.DefaultEncoderConfig())
	if err != nil {
		t.Fatalf("NewFrameEncoder: %v", err)
	}
	if enc.FrameSamples() != 960 {
		t.Fatalf("frame samples: got %d, want 960", enc.FrameSamples())
	}

	// 2000 samples split into 960 + 960 + 80 (padded to 960).
	frames, duration, err := enc.Encode(sineBuffer(2000))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frame count: got %d, want 3", len(frames))
	}
	for i, f := range frames {
		if len(f.Data) == 0 {
			t.Errorf("frame %d has empty payload", i)
		}
		if f.Duration != enc.FrameDuration() {
			t.Errorf("frame %d duration: got %v, want %v", i, f.Duration, enc.FrameDuration())
		}
	}

	// Duration comes from the unpadded sample count.
	want := 2000.0 / 16000.0
	if math.Abs(duration-want) > 1e-9 {
		t.Errorf("duration: got %v, want %v", duration, want)
	}
}

func TestFrameEncoder_ExactMultiple(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())
	frames, duration, err := enc.Encode(sineBuffer(1920))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frame count: got %d, want 2", len(frames))
	}
	if math.Abs(duration-0.12) > 1e-9 {
		t.Errorf("duration: got %v, want 0.12", duration)
	}
}

func TestFrameEncoder_EmptyBuffer(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())
	frames, duration, err := enc.Encode(audio.Buffer{
		SampleRate: audio.CanonicalSampleRate,
		Channels:   audio.CanonicalChannels,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 0 || duration != 0 {
		t.Fatalf("got %d frames / %vs, want none", len(frames), duration)
	}
}

func TestFrameEncoder_Deterministic(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())
	buf := sineBuffer(4321)

	first, _, err := enc.Encode(buf)
	if err != nil {
		t.Fatalf("first Encode: %v", err)
	}
	second, _, err := enc.Encode(buf)
	if err != nil {
		t.Fatalf("second Encode: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("frame count differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i].Data, second[i].Data) {
			t.Errorf("frame %d differs between runs", i)
		}
	}
}

func TestFrameEncoder_ResamplesInput(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())

	// 48 kHz stereo input: 5760 stereo frames → 1920 canonical samples → 2 frames.
	samples := make([]int16, 5760*2)
	buf := audio.Buffer{Data: samplesToBytes(samples), SampleRate: 48000, Channels: 2}

	frames, duration, err := enc.Encode(buf)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frame count: got %d, want 2", len(frames))
	}
	if math.Abs(duration-0.12) > 1e-9 {
		t.Errorf("duration: got %v, want 0.12", duration)
	}
}

func TestFrameEncoder_EncodeContainer(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())

	pcm := sineBuffer(2000)
	frames, duration, err := enc.EncodeContainer(buildWAV(16000, 1, pcm.Data))
	if err != nil {
		t.Fatalf("EncodeContainer: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frame count: got %d, want 3", len(frames))
	}
	if math.Abs(duration-0.125) > 1e-9 {
		t.Errorf("duration: got %v, want 0.125", duration)
	}
}

func TestFrameEncoder_EncodeContainer_BadInput(t *testing.T) {
	enc, _ := audio.NewFrameEncoder(audio.DefaultEncoderConfig())
	frames, _, err := enc.EncodeContainer([]byte("definitely not audio"))
	if !errors.Is(err, audio.ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
	if frames != nil {
		t.Fatal("partial frames returned after decode failure")
	}
}
