// Package mock provides a test double for the asr package interfaces.
//
// Use Provider to inject Transcript responses and inspect the audio buffers
// that were submitted for recognition.
//
// Example:
//
//	p := &mock.Provider{
//	    TranscribeResult: asr.Transcript{Text: "turn on the light"},
//	}
//	transcript, _ := p.Transcribe(ctx, buf)
package mock

import (
	"context"
	"sync"

	"github.com/calliope-voice/calliope/pkg/audio"
	"github.com/calliope-voice/calliope/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Buf is the buffer passed to Transcribe. The PCM bytes are copied.
	Buf audio.Buffer
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeResult is returned by every Transcribe call when Results is
	// empty.
	TranscribeResult asr.Transcript

	// Results, when non-empty, is returned one element per Transcribe call.
	// After the slice is exhausted Transcribe falls back to TranscribeResult.
	Results []asr.Transcript

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	next int
}

// Transcribe records the call and returns the next scripted Transcript (or
// TranscribeResult), TranscribeErr. Context cancellation is honoured.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer) (asr.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return asr.Transcript{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := buf
	cp.Data = append([]byte(nil), buf.Data...)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Buf: cp})
	result := p.TranscribeResult
	if p.next < len(p.Results) {
		result = p.Results[p.next]
		p.next++
	}
	return result, p.TranscribeErr
}

// Reset clears all recorded calls and scripted result progress. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.next = 0
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)
