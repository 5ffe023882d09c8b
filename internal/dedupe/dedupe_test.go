package dedupe

import (
	"strings"
	"testing"
)

func TestParagraphs_DropsRepeatsKeepsOrder(t *testing.T) {
	in := "One.\nOne.\nTwo.\n\n  One.  \nThree."
	got := Paragraphs(in)
	if got != "One.\n\nTwo.\n\nThree." {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestParagraphs_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"a\nb\na\n\nc",
		"Menu\nStory line one.\nMenu\nStory line two.\nSubscribe\nSubscribe",
		"\r\nx\r\ny\r\nx",
	}
	for _, in := range inputs {
		once := Paragraphs(in)
		twice := Paragraphs(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestParagraphs_NoEqualNonEmptyLines(t *testing.T) {
	out := Paragraphs("x\ny\nx\nz\ny\n")
	seen := map[string]bool{}
	for _, l := range strings.Split(out, "\n") {
		if l == "" {
			continue
		}
		if seen[l] {
			t.Fatalf("duplicate line %q in %q", l, out)
		}
		seen[l] = true
	}
}

func TestParagraphs_EmptyInput(t *testing.T) {
	if got := Paragraphs("\n \n\t\n"); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
