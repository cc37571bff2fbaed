package audio

import (
	"errors"
	"fmt"
)

// ErrMalformedPCM is returned when a buffer's byte length does not line up
// with its declared format (16-bit samples times channel count).
var ErrMalformedPCM = errors.New("audio: PCM data does not match declared format")

// Canonicalize converts a decoded buffer to the canonical encoder format:
// mono, 16 kHz, 16-bit signed little-endian. The transform is lossy and
// one-way; the original format is not recoverable. The input buffer is
// never modified — a matching buffer is returned as-is, otherwise a new
// buffer is allocated.
func Canonicalize(b Buffer) (Buffer, error) {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return Buffer{}, fmt.Errorf("audio: canonicalize: invalid format %dHz/%dch", b.SampleRate, b.Channels)
	}
	if len(b.Data)%(2*b.Channels) != 0 {
		return Buffer{}, fmt.Errorf("%w: %d bytes, %d channels", ErrMalformedPCM, len(b.Data), b.Channels)
	}

	pcm := b.Data

	// Downmix first so resampling only touches a single channel.
	if b.Channels != CanonicalChannels {
		pcm = DownmixToMono(pcm, b.Channels)
	}
	if b.SampleRate != CanonicalSampleRate {
		pcm = ResampleMono16(pcm, b.SampleRate, CanonicalSampleRate)
	}

	return Buffer{
		Data:       pcm,
		SampleRate: CanonicalSampleRate,
		Channels:   CanonicalChannels,
	}, nil
}

// DownmixToMono averages all channels of interleaved 16-bit PCM into a single
// channel. Arithmetic is done in int32 to avoid overflow and the result is
// clamped to the int16 range. A mono input is returned unchanged.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += int32(int16(pcm[idx]) | int16(pcm[idx+1])<<8)
		}
		avg := sum / int32(channels)
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples.
// If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// bytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
