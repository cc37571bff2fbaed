// Package segment implements incremental segmentation of streamed generation
// text into speakable units.
//
// A text generator produces output token by token; waiting for the full reply
// before synthesis would add seconds of latency. The [Splitter] watches the
// accumulating fragment stream and emits a [Segment] as soon as a boundary is
// detected, so synthesis of segment i can start while the generator is still
// producing segment i+1.
//
// What counts as a boundary is governed by a [Policy]: a set of
// segment-ending runes (sentence punctuation, newline) plus an emoji
// classifier. A boundary only fires when the accumulated span contains
// speakable content — stray punctuation on its own never produces an empty
// segment.
package segment

import "unicode"

// Policy configures boundary detection and text sanitization for a Splitter.
// The zero value is not useful; start from [DefaultPolicy].
type Policy struct {
	// EndRunes are the runes that terminate a speakable unit.
	EndRunes []rune

	// EmojiEnds treats an emoji cluster as a segment terminator. Emoji are
	// not speakable, so a cluster marks the end of a unit the same way
	// sentence punctuation does.
	EmojiEnds bool

	// StripNoise removes punctuation and emoji from the emitted Text.
	// Stripping is always applied internally to decide whether a span has
	// speakable content; this flag additionally applies it to what the
	// consumer (and therefore the synthesizer) receives. Default off: the
	// emitted text keeps punctuation so TTS prosody is preserved.
	StripNoise bool
}

// DefaultPolicy returns the reference boundary policy: ASCII and CJK
// sentence-ending punctuation plus newline as terminators, emoji clusters
// terminate, noise kept in emitted text.
func DefaultPolicy() Policy {
	return Policy{
		EndRunes:  []rune{'。', '！', '？', '.', '!', '?', '\n'},
		EmojiEnds: true,
	}
}

// isEndRune reports whether r is one of the policy's segment terminators.
func (p Policy) isEndRune(r rune) bool {
	for _, e := range p.EndRunes {
		if r == e {
			return true
		}
	}
	return false
}

// isEmoji reports whether r belongs to an emoji cluster: pictographs and the
// glue runes (zero-width joiner, variation selectors, skin-tone modifiers)
// that combine them.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, transport, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators (flags)
		return true
	case r == 0x200D: // zero-width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	}
	return false
}

// isNoise reports whether r is stripped during sanitization: punctuation,
// symbols and emoji. Letters, digits and whitespace survive.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r) || isEmoji(r)
}

// isSpeakable reports whether r counts toward a span's sanitized length.
// Whitespace keeps the text readable but is not content on its own.
func isSpeakable(r rune) bool {
	return !isNoise(r) && !unicode.IsSpace(r)
}
