// Package energy implements a VAD engine based on short-term signal energy.
//
// Each frame's root-mean-square amplitude is mapped to a speech probability
// and run through a two-threshold hysteresis state machine, so a session
// flips to "speaking" only above the speech threshold and back to silence
// only below the silence threshold. No model files or native libraries are
// required, which makes this the default engine for deployments that cannot
// ship a neural detector.
package energy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/calliope-voice/calliope/pkg/provider/vad"
)

// defaultReferenceRMS is the RMS amplitude (in 16-bit PCM units, max 32767)
// mapped to probability 1.0. 2000 puts conversational speech well above the
// usual thresholds while keeping room noise below them.
const defaultReferenceRMS = 2000.0

var errClosed = errors.New("energy: session is closed")

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithReferenceRMS sets the RMS amplitude that maps to speech probability
// 1.0. Lower values make the detector more sensitive.
func WithReferenceRMS(rms float64) Option {
	return func(e *Engine) {
		e.referenceRMS = rms
	}
}

// Engine implements vad.Engine using frame RMS energy.
type Engine struct {
	referenceRMS float64
}

// New creates an energy Engine.
func New(opts ...Option) *Engine {
	e := &Engine{referenceRMS: defaultReferenceRMS}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate %d must be positive", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: frame size %dms must be positive", cfg.FrameSizeMs)
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold %v out of range [0,1]", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold %v must be in [0, %v]", cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	return &session{
		cfg:          cfg,
		referenceRMS: e.referenceRMS,
		frameBytes:   cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
	}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// session holds the hysteresis state for one audio stream.
type session struct {
	cfg          vad.Config
	referenceRMS float64
	frameBytes   int

	inSpeech bool
	closed   bool
}

// ProcessFrame implements vad.SessionHandle.
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, errClosed
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy: frame is %d bytes, want %d (%dms at %dHz mono)",
			len(frame), s.frameBytes, s.cfg.FrameSizeMs, s.cfg.SampleRate)
	}

	prob := math.Min(1.0, rms(frame)/s.referenceRMS)

	var typ vad.EventType
	switch {
	case prob >= s.cfg.SpeechThreshold:
		if s.inSpeech {
			typ = vad.SpeechContinue
		} else {
			typ = vad.SpeechStart
			s.inSpeech = true
		}
	case prob <= s.cfg.SilenceThreshold:
		if s.inSpeech {
			typ = vad.SpeechEnd
			s.inSpeech = false
		} else {
			typ = vad.Silence
		}
	default:
		// Hysteresis band: keep the current state.
		if s.inSpeech {
			typ = vad.SpeechContinue
		} else {
			typ = vad.Silence
		}
	}

	return vad.Event{Type: typ, Probability: prob}, nil
}

// Reset implements vad.SessionHandle.
func (s *session) Reset() {
	s.inSpeech = false
}

// Close implements vad.SessionHandle.
func (s *session) Close() error {
	s.closed = true
	return nil
}

// Ensure session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*session)(nil)

// rms returns the root-mean-square amplitude of a 16-bit signed
// little-endian PCM buffer, in sample units (0–32767).
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
