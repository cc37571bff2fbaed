package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter removes <think>…</think> reasoning spans from a streamed
// completion. Reasoning models emit their chain of thought inside these tags;
// speaking it aloud is never wanted, so the pipeline filters it out before
// segmentation.
//
// The filter is stateful: a tag may arrive split across chunk boundaries, so
// a trailing partial tag candidate is held back until the next fragment
// settles whether it was a tag or literal text.
//
// A ThinkFilter belongs to a single completion stream and is not safe for
// concurrent use.
type ThinkFilter struct {
	inThink bool
	carry   string
}

// Filter consumes one streamed fragment and returns the speakable portion.
// Text inside a think span is dropped; text held back as a possible partial
// tag is emitted by a later call or by Flush.
func (f *ThinkFilter) Filter(fragment string) string {
	s := f.carry + fragment
	f.carry = ""

	var out strings.Builder
	for s != "" {
		if f.inThink {
			if i := strings.Index(s, thinkClose); i >= 0 {
				s = s[i+len(thinkClose):]
				f.inThink = false
				continue
			}
			// Hold a partial close tag at the end; drop the rest.
			f.carry = partialTagSuffix(s, thinkClose)
			return out.String()
		}

		if i := strings.Index(s, thinkOpen); i >= 0 {
			out.WriteString(s[:i])
			s = s[i+len(thinkOpen):]
			f.inThink = true
			continue
		}
		tail := partialTagSuffix(s, thinkOpen)
		out.WriteString(s[:len(s)-len(tail)])
		f.carry = tail
		return out.String()
	}
	return out.String()
}

// Flush returns any held-back text at end-of-stream. A partial tag that was
// never completed is literal text and is released; content inside an
// unterminated think span stays dropped.
func (f *ThinkFilter) Flush() string {
	carry := f.carry
	f.carry = ""
	if f.inThink {
		return ""
	}
	return carry
}

// Reset clears all state so the filter can be reused for a new stream.
func (f *ThinkFilter) Reset() {
	f.inThink = false
	f.carry = ""
}

// partialTagSuffix returns the longest proper prefix of tag that s ends
// with, or "" when s cannot be continuing into tag.
func partialTagSuffix(s, tag string) string {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return tag[:k]
		}
	}
	return ""
}
