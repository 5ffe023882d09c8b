package chunk

import (
	"strings"
	"testing"
)

func TestSentences_Basic(t *testing.T) {
	got := Sentences("Hello world. How are you? Fine!  Thanks.")
	want := []string{"Hello world.", "How are you?", "Fine!", "Thanks."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected sentences: %q", got)
	}
}

func TestSentences_Abbreviations(t *testing.T) {
	got := Sentences("Dr. Smith met Mr. J. Doe in the U.S. on Jan. 5. They talked, e.g. about rain.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[1], "They talked") {
		t.Fatalf("unexpected second sentence: %q", got[1])
	}
}

func TestSentences_NoIsAbbreviationOnlyBeforeNumber(t *testing.T) {
	got := Sentences("He said no. She left.")
	if strings.Join(got, "|") != "He said no.|She left." {
		t.Fatalf("unexpected sentences: %q", got)
	}
	got = Sentences("Item No. 5 sold out. The rest stayed.")
	if strings.Join(got, "|") != "Item No. 5 sold out.|The rest stayed." {
		t.Fatalf("unexpected sentences: %q", got)
	}
}

func TestSentences_DecimalsAndQuotes(t *testing.T) {
	got := Sentences(`Prices rose 3.5 percent. "Really?" she asked. Yes.`)
	want := []string{"Prices rose 3.5 percent.", `"Really?"`, "she asked.", "Yes."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected sentences: %q", got)
	}
}

func TestSentences_BlankLineEndsSentence(t *testing.T) {
	got := Sentences("Heading\n\nBody text here.\nNext line.")
	want := []string{"Heading", "Body text here.", "Next line."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected sentences: %q", got)
	}
}

func TestSplit_RespectsCeilingAndOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(". ")
	}
	text := b.String()
	chunks := Split(text, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 300 {
			t.Fatalf("chunk %d has %d bytes", i, len(c))
		}
		if c != strings.TrimSpace(c) || c == "" {
			t.Fatalf("chunk %d not trimmed or empty: %q", i, c)
		}
	}
	if strings.Join(chunks, " ") != strings.Join(strings.Fields(text), " ") {
		t.Fatalf("rejoined chunks do not reproduce the input")
	}
}

func TestSplit_CountsUTF8Bytes(t *testing.T) {
	// Each sentence is 7 runes but 13 bytes.
	s := "ääääää. "
	text := strings.Repeat(s, 10)
	chunks := Split(text, 30)
	for _, c := range chunks {
		if len(c) > 30 {
			t.Fatalf("chunk exceeds byte ceiling: %d bytes", len(c))
		}
	}
	// 13 + 1 + 13 = 27 bytes; a third sentence would need 41.
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
}

func TestSplit_OversizedSentencePassesThrough(t *testing.T) {
	long := strings.Repeat("word ", 50) + "end."
	chunks := Split("Short one. "+long+" Tail.", 40)
	found := false
	for _, c := range chunks {
		if len(c) > 40 {
			if c != strings.Join(strings.Fields(long), " ") {
				t.Fatalf("oversized chunk altered: %q", c)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the oversized sentence to be emitted whole")
	}
	if chunks[0] != "Short one." || chunks[len(chunks)-1] != "Tail." {
		t.Fatalf("neighbours should be separate chunks: %q", chunks)
	}
}

func TestSplitWith_StrictHardSplits(t *testing.T) {
	long := strings.Repeat("word ", 50) + "end."
	chunks := SplitWith(long, Options{MaxBytes: 40, Strict: true})
	for _, c := range chunks {
		if len(c) > 40 {
			t.Fatalf("strict chunk too large: %d", len(c))
		}
	}
	if strings.Join(chunks, " ") != strings.Join(strings.Fields(long), " ") {
		t.Fatalf("strict split lost content")
	}
}

func TestSplitWith_StrictCutsGiantWordOnRunes(t *testing.T) {
	word := strings.Repeat("é", 30) // 60 bytes
	chunks := SplitWith(word+".", Options{MaxBytes: 25, Strict: true})
	if strings.Join(chunks, "") != word+"." {
		t.Fatalf("rune split lost content: %q", chunks)
	}
	for _, c := range chunks {
		if len(c) > 25 {
			t.Fatalf("piece too large: %d", len(c))
		}
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	if got := Split("   ", 100); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

func TestNumber_OneBased(t *testing.T) {
	n := Number([]string{"a", "b"})
	if n[0].Index != 1 || n[1].Index != 2 || n[1].Text != "b" {
		t.Fatalf("unexpected numbering: %+v", n)
	}
}

func TestNarration_IntroLeadsAsOwnChunk(t *testing.T) {
	got := Narration("Title: Hi. Source: Example_Com.", "One.\n\nTwo.", Options{})
	if len(got) != 2 {
		t.Fatalf("expected intro chunk plus one body chunk, got %+v", got)
	}
	if got[0].Index != 1 || !strings.HasPrefix(got[0].Text, "Title: Hi.") {
		t.Fatalf("intro must lead: %+v", got[0])
	}
	if got[1].Text != "One. Two." {
		t.Fatalf("unexpected body chunk %q", got[1].Text)
	}
}
