// Package transcript implements hotword correction for recognition output.
//
// Speech recognisers reliably mishear the short, rare words that matter most
// to a voice assistant: device names, wake words, proper nouns. The
// Corrector aligns transcript tokens against a configured hotword list using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity, and rewrites close mishears before the text reaches the
// language model.
//
// The algorithm proceeds in two stages per candidate span:
//
//  1. Phonetic filtering: Double Metaphone codes are computed for the span's
//     tokens and for each hotword. A code overlap makes the hotword a
//     phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the hotword with the
//     highest similarity (case-insensitive) wins, provided its score clears
//     the phonetic threshold. Without any phonetic candidate, a pure
//     similarity pass applies with a stricter fuzzy threshold.
//
// Multi-word hotwords (e.g., "living room lamp") are matched against sliding
// n-gram windows of the transcript.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// punctCutset holds the punctuation stripped from token edges before
// matching and re-attached after replacement.
const punctCutset = ".,!?;:\"'，。！？；："

// Correction records a single hotword rewrite.
type Correction struct {
	// Original is the transcript span that was replaced.
	Original string

	// Corrected is the hotword it was replaced with.
	Corrected string

	// Confidence is the Jaro-Winkler similarity of the match (0.0–1.0).
	Confidence float64
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched hotword to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and matching falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// Corrector rewrites phonetic mishears of configured hotwords. It is
// read-only after construction and safe for concurrent use.
type Corrector struct {
	hotwords          []string
	maxTokens         int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector returns a Corrector for the given hotword list. An empty
// list produces a no-op corrector.
func NewCorrector(hotwords []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, h := range hotwords {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		c.hotwords = append(c.hotwords, h)
		if n := len(strings.Fields(h)); n > c.maxTokens {
			c.maxTokens = n
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct scans text for spans that phonetically match a hotword and
// replaces them, preferring longer spans. Edge punctuation of a replaced
// span is preserved. The returned slice lists the rewrites in order; it is
// nil when nothing changed.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.hotwords) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	tokens := strings.Fields(text)
	var out []string
	var corrections []Correction

	for i := 0; i < len(tokens); {
		replaced := false
		for n := min(c.maxTokens, len(tokens)-i); n >= 1 && !replaced; n-- {
			window := tokens[i : i+n]
			span, prefix, suffix := trimSpan(window)
			if span == "" {
				continue
			}

			hotword, score, ok := c.match(span)
			if !ok {
				continue
			}
			if strings.EqualFold(span, hotword) {
				// Already correct; leave the original casing alone.
				out = append(out, window...)
				i += n
				replaced = true
				continue
			}

			out = append(out, prefix+hotword+suffix)
			corrections = append(corrections, Correction{
				Original:   span,
				Corrected:  hotword,
				Confidence: score,
			})
			i += n
			replaced = true
		}
		if !replaced {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " "), corrections
}

// match tests one span against every hotword and returns the best match per
// the two-stage phonetic/fuzzy policy.
func (c *Corrector) match(span string) (hotword string, score float64, ok bool) {
	spanLower := strings.ToLower(span)
	spanTokens := strings.Fields(spanLower)
	spanCodes := codesForTokens(spanTokens)

	type candidate struct {
		hotword  string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, h := range c.hotwords {
		hLower := strings.ToLower(h)
		hTokens := strings.Fields(hLower)

		// Replacement must not swallow or invent words: a span only
		// matches a hotword of the same token count.
		if len(hTokens) != len(spanTokens) {
			continue
		}

		phoneticMatch := codesOverlap(spanCodes, codesForTokens(hTokens))
		jwScore := bestJWScore(spanTokens, hTokens, spanLower, hLower)

		if phoneticMatch {
			if jwScore >= c.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{hotword: h, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= c.fuzzyThreshold && jwScore > best.score {
				best = candidate{hotword: h, score: jwScore, phonetic: false}
			}
		}
	}

	if best.hotword == "" {
		return "", 0, false
	}
	return best.hotword, best.score, true
}

// trimSpan joins a token window and strips edge punctuation, returning the
// stripped span together with the removed prefix and suffix.
func trimSpan(window []string) (span, prefix, suffix string) {
	joined := strings.Join(window, " ")
	trimmed := strings.TrimLeft(joined, punctCutset)
	prefix = joined[:len(joined)-len(trimmed)]
	span = strings.TrimRight(trimmed, punctCutset)
	suffix = trimmed[len(span):]
	return span, prefix, suffix
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or
// contains no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the span
// and the hotword using three strategies:
//
//  1. Full-string comparison ("living rum lamp" vs "living room lamp").
//  2. Space-stripped comparison ("livingrumlamp" vs "livingroomlamp").
//  3. Best pairwise token comparison, for when one spoken word lines up
//     with one hotword token.
func bestJWScore(spanTokens, hotTokens []string, spanFull, hotFull string) float64 {
	score := matchr.JaroWinkler(spanFull, hotFull, false)

	if len(spanTokens) > 1 || len(hotTokens) > 1 {
		concat1 := strings.Join(spanTokens, "")
		concat2 := strings.Join(hotTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, st := range spanTokens {
		for _, ht := range hotTokens {
			if s := matchr.JaroWinkler(st, ht, false); s > score {
				score = s
			}
		}
	}

	return score
}
