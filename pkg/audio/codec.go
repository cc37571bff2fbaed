package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Decoder wraps a gopus Opus decoder for a single inbound client stream.
// Each connection gets its own decoder so codec state stays correct across
// consecutive frames. Not safe for concurrent use.
type Decoder struct {
	dec          *gopus.Decoder
	frameSamples int
}

// NewDecoder creates an Opus decoder for mono frames at the given rate and
// frame duration. Device clients send frames in the same canonical format
// the server emits.
func NewDecoder(sampleRate, frameDurationMs int) (*Decoder, error) {
	if sampleRate <= 0 || frameDurationMs <= 0 {
		return nil, fmt.Errorf("%w: %dHz/%dms decoder", ErrInvalidConfig, sampleRate, frameDurationMs)
	}
	dec, err := gopus.NewDecoder(sampleRate, CanonicalChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &Decoder{
		dec:          dec,
		frameSamples: sampleRate * frameDurationMs / 1000,
	}, nil
}

// Decode decodes one Opus packet into little-endian 16-bit PCM bytes.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, d.frameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}
