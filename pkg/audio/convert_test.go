package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/calliope-voice/calliope/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestDownmixToMono_Stereo(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	mono := audio.DownmixToMono(stereo, 2)
	got := bytesToSamples(mono)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownmixToMono_MonoUnchanged(t *testing.T) {
	mono := samplesToBytes([]int16{1, 2, 3})
	out := audio.DownmixToMono(mono, 1)
	if len(out) != len(mono) {
		t.Fatalf("mono input modified: got %d bytes, want %d", len(out), len(mono))
	}
}

func TestDownmixToMono_FourChannels(t *testing.T) {
	// One 4-channel frame: average of 10, 20, 30, 40 is 25.
	quad := samplesToBytes([]int16{10, 20, 30, 40})
	got := bytesToSamples(audio.DownmixToMono(quad, 4))
	if len(got) != 1 || got[0] != 25 {
		t.Fatalf("got %v, want [25]", got)
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 16000, 16000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3)
	pcm := samplesToBytes([]int16{0, 300, 600, 900, 1200, 1500})
	got := bytesToSamples(audio.ResampleMono16(pcm, 48000, 16000))
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 0 {
		t.Errorf("first sample: got %d, want 0", got[0])
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	pcm := samplesToBytes([]int16{1000, 2000})
	got := bytesToSamples(audio.ResampleMono16(pcm, 8000, 16000))
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
}

func TestCanonicalize_AlreadyCanonical(t *testing.T) {
	buf := audio.Buffer{
		Data:       samplesToBytes([]int16{1, 2, 3, 4}),
		SampleRate: audio.CanonicalSampleRate,
		Channels:   audio.CanonicalChannels,
	}
	got, err := audio.Canonicalize(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SampleRate != audio.CanonicalSampleRate || got.Channels != 1 {
		t.Fatalf("format changed: %+v", got)
	}
	if got.Samples() != 4 {
		t.Errorf("sample count: got %d, want 4", got.Samples())
	}
}

func TestCanonicalize_StereoDownsample(t *testing.T) {
	// 48kHz stereo → 16kHz mono: 6 stereo frames become 2 mono samples.
	samples := make([]int16, 12)
	for i := range samples {
		samples[i] = int16(i * 100)
	}
	buf := audio.Buffer{Data: samplesToBytes(samples), SampleRate: 48000, Channels: 2}
	got, err := audio.Canonicalize(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("format: got %dHz/%dch, want 16000Hz/1ch", got.SampleRate, got.Channels)
	}
	if got.Samples() != 2 {
		t.Errorf("sample count: got %d, want 2", got.Samples())
	}
}

func TestCanonicalize_MalformedPCM(t *testing.T) {
	buf := audio.Buffer{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 2}
	if _, err := audio.Canonicalize(buf); err == nil {
		t.Fatal("expected error for misaligned PCM data")
	}
}

func TestCanonicalize_InvalidFormat(t *testing.T) {
	buf := audio.Buffer{Data: []byte{0, 0}, SampleRate: 0, Channels: 1}
	if _, err := audio.Canonicalize(buf); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}
