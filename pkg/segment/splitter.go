package segment

import "strings"

// Segment is one finalized speakable unit. Immutable once emitted; ownership
// passes to the caller.
type Segment struct {
	// Raw is the exact span of generator output that produced this segment,
	// byte for byte. Concatenating the Raw fields of all emitted segments
	// reconstructs the consumed fragment stream in order.
	Raw string

	// Text is what the consumer receives: Raw with backslash, double-quote
	// and newline escaped so the segment can be embedded in a line-delimited
	// JSON record, and with punctuation/emoji removed when the policy's
	// StripNoise flag is set.
	Text string
}

// Splitter consumes an ordered stream of text fragments and emits segments
// as boundaries are found. It keeps a persistent scan cursor so each pushed
// fragment is examined exactly once — amortized O(1) work per fragment
// regardless of how long the stream runs.
//
// A Splitter belongs to a single generation stream. It is not safe for
// concurrent use; drive it from the goroutine that reads the generator.
type Splitter struct {
	policy Policy

	// pending holds fragments accumulated since the last emitted boundary.
	pending []rune

	// scanned is the index into pending up to which boundary detection has
	// already run. Runes before it are waiting for a terminator, not for
	// re-examination.
	scanned int

	// speakable counts sanitized content in pending[:scanned]. A boundary
	// fires only while this is non-zero, which is what prevents stray
	// punctuation from becoming an empty segment.
	speakable int
}

// NewSplitter returns a Splitter using the given boundary policy.
func NewSplitter(policy Policy) *Splitter {
	return &Splitter{policy: policy}
}

// Push appends one fragment to the accumulation buffer and returns any
// segments completed by it, in order. Most calls return nil; a fragment
// containing several terminators can complete several segments at once.
func (s *Splitter) Push(fragment string) []Segment {
	if fragment == "" {
		return nil
	}
	s.pending = append(s.pending, []rune(fragment)...)

	var out []Segment
	for s.scanned < len(s.pending) {
		r := s.pending[s.scanned]

		switch {
		case s.policy.isEndRune(r) && s.speakable > 0:
			out = append(out, s.emit(s.scanned+1))
			continue

		case s.policy.EmojiEnds && isEmoji(r) && s.speakable > 0:
			// Absorb the rest of the cluster (joiners, modifiers, further
			// pictographs) so a multi-rune emoji is never cut in half.
			end := s.scanned + 1
			for end < len(s.pending) && isEmoji(s.pending[end]) {
				end++
			}
			if end == len(s.pending) {
				// Cluster may continue in the next fragment; hold the
				// boundary until a non-emoji rune or Flush settles it.
				return out
			}
			out = append(out, s.emit(end))
			continue
		}

		if isSpeakable(r) {
			s.speakable++
		}
		s.scanned++
	}
	return out
}

// Flush finalizes whatever remains buffered at end-of-stream. It returns the
// final segment and true when the remaining span has non-zero sanitized
// length, otherwise false. Either way the splitter is reset and ready for a
// new stream.
//
// On upstream cancellation the caller chooses between Flush (speak what was
// buffered) and [Splitter.Discard].
func (s *Splitter) Flush() (Segment, bool) {
	// Count content the scan cursor has not reached yet (e.g. a held-back
	// trailing emoji cluster or a span with no terminator).
	speakable := s.speakable
	for _, r := range s.pending[s.scanned:] {
		if isSpeakable(r) {
			speakable++
		}
	}
	if len(s.pending) == 0 || speakable == 0 {
		s.Discard()
		return Segment{}, false
	}
	seg := s.emit(len(s.pending))
	s.Discard()
	return seg, true
}

// Discard drops all buffered state without emitting anything. Used when the
// upstream stream is cancelled and the caller does not want a partial flush.
func (s *Splitter) Discard() {
	s.pending = nil
	s.scanned = 0
	s.speakable = 0
}

// Buffered returns the current accumulated span that has not yet been
// finalized. Useful for diagnostics and tests.
func (s *Splitter) Buffered() string {
	return string(s.pending)
}

// emit finalizes pending[:end] as a segment and advances the accumulation
// cursor past it.
func (s *Splitter) emit(end int) Segment {
	span := string(s.pending[:end])

	rest := s.pending[end:]
	s.pending = append([]rune(nil), rest...)
	s.scanned = 0
	s.speakable = 0

	return Segment{Raw: span, Text: s.sanitize(span)}
}

// sanitize produces the consumer-facing text for a span: optional noise
// stripping followed by escaping for line-delimited JSON embedding.
func (s *Splitter) sanitize(span string) string {
	if s.policy.StripNoise {
		var b strings.Builder
		b.Grow(len(span))
		for _, r := range span {
			if !isNoise(r) {
				b.WriteRune(r)
			}
		}
		span = b.String()
	}
	return escape(span)
}

// escape backslash-escapes the characters that would break a one-line JSON
// string: backslash, double quote and newline.
func escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
