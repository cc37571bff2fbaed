package audio_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/calliope-voice/calliope/pkg/audio"
)

// buildWAV assembles a minimal RIFF/WAVE file around the given PCM payload.
func buildWAV(sampleRate, channels int, pcm []byte) []byte {
	var out []byte
	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	out = append(out, "RIFF"...)
	out = append(out, u32(uint32(36+len(pcm)))...)
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = append(out, u32(16)...)
	out = append(out, u16(1)...) // PCM
	out = append(out, u16(uint16(channels))...)
	out = append(out, u32(uint32(sampleRate))...)
	out = append(out, u32(uint32(sampleRate*channels*2))...) // byte rate
	out = append(out, u16(uint16(channels*2))...)            // block align
	out = append(out, u16(16)...)                            // bits per sample

	out = append(out, "data"...)
	out = append(out, u32(uint32(len(pcm)))...)
	out = append(out, pcm...)
	return out
}

func TestDecodeWAV_Roundtrip(t *testing.T) {
	pcm := samplesToBytes([]int16{10, -10, 20, -20})
	buf, err := audio.DecodeWAV(buildWAV(24000, 1, pcm))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.SampleRate != 24000 || buf.Channels != 1 {
		t.Errorf("format: got %dHz/%dch, want 24000Hz/1ch", buf.SampleRate, buf.Channels)
	}
	if buf.Samples() != 4 {
		t.Errorf("sample count: got %d, want 4", buf.Samples())
	}
}

func TestEncodeWAV_Roundtrip(t *testing.T) {
	in := audio.Buffer{
		Data:       samplesToBytes([]int16{1, -1, 300, -300}),
		SampleRate: 16000,
		Channels:   1,
	}
	out, err := audio.DecodeWAV(audio.EncodeWAV(in))
	if err != nil {
		t.Fatalf("decode of encoded wav: %v", err)
	}
	if out.SampleRate != in.SampleRate || out.Channels != in.Channels {
		t.Errorf("format: got %dHz/%dch", out.SampleRate, out.Channels)
	}
	if string(out.Data) != string(in.Data) {
		t.Error("pcm payload changed across encode/decode")
	}
}

func TestDecodeWAV_NotRIFF(t *testing.T) {
	_, err := audio.DecodeWAV([]byte("OggS this is not a wav file at all"))
	if !errors.Is(err, audio.ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
}

func TestDecodeWAV_NonPCMFormat(t *testing.T) {
	data := buildWAV(16000, 1, samplesToBytes([]int16{1, 2}))
	// Overwrite the format tag with 3 (IEEE float).
	binary.LittleEndian.PutUint16(data[20:22], 3)
	_, err := audio.DecodeWAV(data)
	if !errors.Is(err, audio.ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
}

func TestDecodeWAV_TruncatedChunk(t *testing.T) {
	data := buildWAV(16000, 1, samplesToBytes([]int16{1, 2, 3, 4}))
	_, err := audio.DecodeWAV(data[:len(data)-3])
	if !errors.Is(err, audio.ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
}

func TestDecodeWAV_MissingData(t *testing.T) {
	data := buildWAV(16000, 1, nil)
	// Strip the data chunk entirely (last 8 header bytes).
	_, err := audio.DecodeWAV(data[:len(data)-8])
	if !errors.Is(err, audio.ErrUnsupportedAudio) {
		t.Fatalf("expected ErrUnsupportedAudio, got %v", err)
	}
}
