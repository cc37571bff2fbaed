// Package pipeline implements the reply half of a dialogue turn: it drives a
// streamed LLM completion through the segment splitter, synthesises each
// finalized segment, packetizes the synthesis into fixed-duration Opus
// frames, and emits everything as one ordered event stream.
//
// The event contract mirrors what the gateway writes to the wire: a
// [EventSegmentStart] announcing each segment's text, the segment's
// [EventAudioFrame]s in order, then either [EventDone] or a terminal
// [EventError]. A consumer can therefore distinguish a normal end of stream
// from a mid-stream failure without out-of-band signalling.
//
// Synthesis and encoding run on the pipeline goroutine, off the caller's
// goroutine; the caller just drains the event channel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calliope-voice/calliope/internal/observe"
	"github.com/calliope-voice/calliope/pkg/audio"
	"github.com/calliope-voice/calliope/pkg/provider/llm"
	"github.com/calliope-voice/calliope/pkg/provider/tts"
	"github.com/calliope-voice/calliope/pkg/segment"
)

// EventType enumerates pipeline event kinds.
type EventType int

const (
	// EventSegmentStart announces a finalized segment before its audio.
	EventSegmentStart EventType = iota

	// EventAudioFrame carries one encoded Opus frame.
	EventAudioFrame

	// EventError is a terminal record: the turn failed mid-stream and no
	// further events follow.
	EventError

	// EventDone is the terminal record of a successful turn.
	EventDone
)

// Event is one element of the ordered turn event stream.
type Event struct {
	// Type discriminates the payload fields below.
	Type EventType

	// Segment is the 0-based ordinal of the segment this event belongs to.
	// Unset for EventDone and stream-level EventError.
	Segment int

	// Text is the segment's consumer text (EventSegmentStart only).
	Text string

	// Raw is the segment's unescaped source span (EventSegmentStart only).
	// Callers that persist the reply should use Raw, not Text.
	Raw string

	// Frame is the Opus packet payload (EventAudioFrame only).
	Frame []byte

	// FrameDuration is the fixed duration of Frame (EventAudioFrame only).
	FrameDuration time.Duration

	// Duration is the total synthesised audio duration in seconds
	// (EventDone only).
	Duration float64

	// Err carries the failure (EventError only).
	Err error
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithPolicy sets the segment boundary policy. Defaults to
// [segment.DefaultPolicy].
func WithPolicy(p segment.Policy) Option {
	return func(pl *Pipeline) {
		pl.policy = p
	}
}

// WithVoice sets the synthesis voice passed to the TTS provider.
func WithVoice(v tts.Voice) Option {
	return func(pl *Pipeline) {
		pl.voice = v
	}
}

// WithMetrics attaches pipeline stage metrics. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(pl *Pipeline) {
		pl.metrics = m
	}
}

// WithLogger sets the logger for stage diagnostics. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// Pipeline turns one completion request into a stream of segment and audio
// events. A Pipeline is immutable after construction and safe for
// concurrent Run calls; each call gets its own splitter and event stream.
type Pipeline struct {
	llm     llm.Provider
	tts     tts.Provider
	encoder *audio.FrameEncoder

	policy  segment.Policy
	voice   tts.Voice
	metrics *observe.Metrics
	logger  *slog.Logger
}

// New constructs a Pipeline over the given providers and frame encoder.
func New(llmP llm.Provider, ttsP tts.Provider, encoder *audio.FrameEncoder, opts ...Option) (*Pipeline, error) {
	if llmP == nil || ttsP == nil || encoder == nil {
		return nil, errors.New("pipeline: llm, tts and encoder must not be nil")
	}
	p := &Pipeline{
		llm:     llmP,
		tts:     ttsP,
		encoder: encoder,
		policy:  segment.DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p, nil
}

// Run starts the turn and returns its event stream. The returned channel is
// closed after the terminal event ([EventDone] or [EventError]), or without
// one when ctx is cancelled mid-turn. The initial error return is non-nil
// only when the completion stream cannot be started at all.
//
// Callers must drain the channel.
func (p *Pipeline) Run(ctx context.Context, req llm.CompletionRequest) (<-chan Event, error) {
	chunks, err := p.llm.StreamCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pipeline: start completion: %w", err)
	}

	events := make(chan Event, 64)
	go p.run(ctx, chunks, events)
	return events, nil
}

// run is the pipeline goroutine: splitter feed, synthesis, encoding,
// terminal event.
func (p *Pipeline) run(ctx context.Context, chunks <-chan llm.Chunk, events chan<- Event) {
	defer close(events)

	splitter := segment.NewSplitter(p.policy)
	start := time.Now()
	firstChunk := false
	segIndex := 0
	totalDuration := 0.0

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for chunk := range chunks {
		if !firstChunk {
			firstChunk = true
			p.metrics.LLMFirstChunk.Record(ctx, time.Since(start).Seconds())
		}
		if chunk.FinishReason == "error" {
			splitter.Discard()
			emit(Event{Type: EventError, Segment: segIndex, Err: fmt.Errorf("pipeline: completion failed: %s", chunk.Text)})
			return
		}

		for _, seg := range splitter.Push(chunk.Text) {
			d, ok := p.speak(ctx, events, emit, segIndex, seg)
			if !ok {
				return
			}
			totalDuration += d
			segIndex++
		}
	}

	if err := ctx.Err(); err != nil {
		splitter.Discard()
		return
	}

	if seg, ok := splitter.Flush(); ok {
		d, ok := p.speak(ctx, events, emit, segIndex, seg)
		if !ok {
			return
		}
		totalDuration += d
		segIndex++
	}

	p.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	emit(Event{Type: EventDone, Duration: totalDuration})
}

// speak synthesises one segment, encodes it, and emits its events. It
// returns the synthesised duration in seconds and whether the stream may
// continue; on failure a terminal EventError has been emitted.
func (p *Pipeline) speak(ctx context.Context, events chan<- Event, emit func(Event) bool, index int, seg segment.Segment) (float64, bool) {
	if !emit(Event{Type: EventSegmentStart, Segment: index, Text: seg.Text, Raw: seg.Raw}) {
		return 0, false
	}

	ttsStart := time.Now()
	wav, err := p.tts.Synthesize(ctx, seg.Raw, p.voice)
	ttsSeconds := time.Since(ttsStart).Seconds()
	if err != nil {
		p.metrics.RecordProviderError(ctx, "tts", "synthesize")
		p.logger.Error("segment synthesis failed", "segment", index, "error", err)
		emit(Event{Type: EventError, Segment: index, Err: fmt.Errorf("pipeline: synthesize segment %d: %w", index, err)})
		return 0, false
	}

	encodeStart := time.Now()
	frames, duration, err := p.encoder.EncodeContainer(wav)
	encodeSeconds := time.Since(encodeStart).Seconds()
	if err != nil {
		p.metrics.RecordProviderError(ctx, "encoder", "encode")
		p.logger.Error("segment encoding failed", "segment", index, "error", err)
		emit(Event{Type: EventError, Segment: index, Err: fmt.Errorf("pipeline: encode segment %d: %w", index, err)})
		return 0, false
	}

	p.metrics.RecordSegment(ctx, ttsSeconds, encodeSeconds, len(frames))

	for _, f := range frames {
		ev := Event{
			Type:          EventAudioFrame,
			Segment:       index,
			Frame:         f.Data,
			FrameDuration: f.Duration,
		}
		if !emit(ev) {
			return 0, false
		}
	}
	return duration, true
}
