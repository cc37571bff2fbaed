// Package mock provides a test double for the tts package interfaces.
//
// Use Provider to inject audio responses and inspect the text that was
// submitted for synthesis.
//
// Example:
//
//	p := &mock.Provider{SynthesizeResult: audio.EncodeWAV(buf)}
//	wav, _ := p.Synthesize(ctx, "Hello!", tts.Voice{})
package mock

import (
	"context"
	"sync"

	"github.com/calliope-voice/calliope/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string

	// Voice is the voice passed to Synthesize.
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeResult is returned by every Synthesize call when Results is
	// empty.
	SynthesizeResult []byte

	// Results, when non-empty, is returned one element per Synthesize call.
	// After the slice is exhausted Synthesize falls back to SynthesizeResult.
	Results [][]byte

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	next int
}

// Synthesize records the call and returns the next scripted payload (or
// SynthesizeResult), SynthesizeErr. Context cancellation is honoured.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	result := p.SynthesizeResult
	if p.next < len(p.Results) {
		result = p.Results[p.next]
		p.next++
	}
	return append([]byte(nil), result...), nil
}

// Reset clears all recorded calls and scripted result progress. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.next = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
