package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedAudio is returned when input bytes cannot be decoded into
// linear PCM — either the container is not a RIFF/WAVE file or the encoding
// inside it is not 16-bit PCM. Callers treat this as fatal for the current
// synthesis request.
var ErrUnsupportedAudio = errors.New("audio: unsupported or corrupt audio")

// DecodeWAV parses a RIFF/WAVE container and returns the PCM payload with its
// declared format. Only uncompressed 16-bit PCM (format tag 1) is accepted;
// anything else yields [ErrUnsupportedAudio]. This function is the boundary
// between audio ingestion and canonicalization: TTS backends hand their
// container bytes here and everything downstream works on [Buffer] values.
func DecodeWAV(data []byte) (Buffer, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Buffer{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedAudio)
	}

	var (
		haveFmt    bool
		channels   int
		sampleRate int
		pcm        []byte
	)

	// Walk the chunk list. Chunks are 8 bytes of header (4-byte ID, 4-byte
	// little-endian size) followed by the payload, padded to even length.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return Buffer{}, fmt.Errorf("%w: chunk %q overruns file", ErrUnsupportedAudio, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Buffer{}, fmt.Errorf("%w: fmt chunk too short", ErrUnsupportedAudio)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return Buffer{}, fmt.Errorf("%w: format tag %d, %d bits (want PCM16)", ErrUnsupportedAudio, format, bits)
			}
			if channels <= 0 || sampleRate <= 0 {
				return Buffer{}, fmt.Errorf("%w: %d channels at %dHz", ErrUnsupportedAudio, channels, sampleRate)
			}
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		off = body + size
		if size%2 == 1 {
			off++ // chunk padding byte
		}
	}

	if !haveFmt || pcm == nil {
		return Buffer{}, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedAudio)
	}
	if len(pcm)%(2*channels) != 0 {
		return Buffer{}, fmt.Errorf("%w: data chunk not sample-aligned", ErrUnsupportedAudio)
	}

	return Buffer{Data: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

// EncodeWAV wraps a Buffer's PCM payload in a standard RIFF/WAVE container.
// The result round-trips through [DecodeWAV] and is suitable for upload to
// transcription services that expect a file rather than raw samples.
func EncodeWAV(b Buffer) []byte {
	byteRate := b.SampleRate * b.Channels * 2
	blockAlign := b.Channels * 2
	dataSize := len(b.Data)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // format tag: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(b.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(b.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], b.Data)

	return buf
}
