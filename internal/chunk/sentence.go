package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations never end a sentence even when followed by whitespace.
// Keys are lower case without the trailing period.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"rev": {}, "gen": {}, "sen": {}, "rep": {}, "gov": {}, "lt": {}, "col": {}, "sgt": {}, "capt": {},
	"vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "cf": {}, "al": {}, "approx": {}, "vol": {},
	"fig": {}, "inc": {}, "ltd": {}, "co": {}, "corp": {}, "dept": {}, "est": {}, "u.s": {}, "u.k": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {}, "sep": {}, "sept": {},
	"oct": {}, "nov": {}, "dec": {}, "mt": {}, "ft": {}, "a.m": {}, "p.m": {},
}

// numbered abbreviations only count as such before a number ("No. 5").
var numbered = map[string]struct{}{"no": {}, "nos": {}}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '…' }

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»':
		return true
	}
	return false
}

// Sentences splits text into sentences. A sentence ends at terminal
// punctuation (plus any closing quotes or brackets) followed by whitespace,
// unless the word before the period is a known abbreviation or a single-letter
// initial. A blank line also ends a sentence, so unpunctuated headings stand
// alone. Internal whitespace of each sentence is collapsed to single spaces.
func Sentences(text string) []string {
	var out []string
	start := 0
	emit := func(end int) {
		if s := collapse(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\n' && blankLineFollows(text, i+size) {
			emit(i)
			i += size
			continue
		}
		if !isTerminal(r) {
			i += size
			continue
		}
		end := i + size
		for end < len(text) {
			nr, ns := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(nr) && !isCloser(nr) {
				break
			}
			end += ns
		}
		if end < len(text) {
			nr, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(nr) {
				i = end
				continue
			}
		}
		if r == '.' && isAbbreviation(text[start:i], text[end:]) {
			i = end
			continue
		}
		emit(end)
		i = end
	}
	emit(len(text))
	return out
}

// blankLineFollows reports whether only spaces/tabs separate pos from the next newline.
func blankLineFollows(text string, pos int) bool {
	for j := pos; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\r':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}

func isAbbreviation(before, after string) bool {
	before = strings.TrimRightFunc(before, unicode.IsSpace)
	idx := strings.LastIndexFunc(before, unicode.IsSpace)
	word := before[idx+1:]
	word = strings.TrimLeft(word, "\"'“‘([")
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	word = strings.ToLower(word)
	if _, ok := numbered[word]; ok {
		next := strings.TrimLeftFunc(after, unicode.IsSpace)
		r, _ := utf8.DecodeRuneInString(next)
		return unicode.IsDigit(r)
	}
	_, ok := abbreviations[word]
	return ok
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
