// Package chunk splits narration text into byte-bounded, sentence-aligned
// segments that fit a speech service's per-request payload ceiling.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// DefaultMaxBytes is the per-request ceiling of the synthesis services.
const DefaultMaxBytes = 5000

// Options controls splitting.
type Options struct {
	// MaxBytes is the UTF-8 byte ceiling per chunk. Zero means DefaultMaxBytes.
	MaxBytes int
	// Strict hard-splits a single sentence that alone exceeds MaxBytes at
	// word boundaries. When false such a sentence becomes its own oversized chunk.
	Strict bool
}

// Chunk is one numbered segment. Index starts at 1.
type Chunk struct {
	Index int
	Text  string
}

// Split greedily packs sentences into chunks of at most maxBytes bytes.
func Split(text string, maxBytes int) []string {
	return SplitWith(text, Options{MaxBytes: maxBytes})
}

// SplitWith is Split with explicit options. Joining the result with single
// spaces reproduces the input up to whitespace normalization.
func SplitWith(text string, opts Options) []string {
	max := opts.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, s := range Sentences(text) {
		if len(s) > max {
			flush()
			if opts.Strict {
				chunks = append(chunks, splitOversized(s, max)...)
			} else {
				log.Warn().Int("bytes", len(s)).Int("max", max).Msg("sentence exceeds chunk ceiling; sending unsplit")
				chunks = append(chunks, s)
			}
			continue
		}
		need := len(s)
		if cur.Len() > 0 {
			need += cur.Len() + 1
		}
		if need > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(s)
	}
	flush()
	log.Debug().Int("chunks", len(chunks)).Int("max_bytes", max).Msg("split text")
	return chunks
}

// Number attaches 1-based indices to chunks.
func Number(chunks []string) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = Chunk{Index: i + 1, Text: c}
	}
	return out
}

// splitOversized breaks one sentence into word-aligned pieces of at most max
// bytes. A single word longer than max is cut on rune boundaries.
func splitOversized(s string, max int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(s) {
		for len(w) > max {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := runeBoundary(w, max)
			out = append(out, w[:cut])
			w = w[cut:]
		}
		need := len(w)
		if cur.Len() > 0 {
			need += cur.Len() + 1
		}
		if need > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// runeBoundary returns the largest index <= max that does not split a rune.
func runeBoundary(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return i
}

// Narration chunks the spoken intro and the article body separately, so the
// provenance announcement always forms the leading chunk(s), and numbers the
// result.
func Narration(intro, body string, opts Options) []Chunk {
	parts := SplitWith(intro, opts)
	parts = append(parts, SplitWith(body, opts)...)
	return Number(parts)
}
