package transcript

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/speakloud/internal/article"
)

func TestRender_ProducesPDF(t *testing.T) {
	rec := article.Record{
		Title:       "Café society",
		Text:        "First paragraph.\n\nSecond paragraph with ümlauts.",
		Authors:     []string{"Ann Writer"},
		PublishDate: "2024-03-05",
		Source:      "https://www.bbc.com/news/1",
	}
	var buf bytes.Buffer
	if err := Render(&buf, rec); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("missing PDF header: %q", out[:min(len(out), 16)])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatalf("missing PDF trailer")
	}
}

func TestRenderFile_EmptyRecordUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pdf")
	if err := RenderFile(path, article.Record{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		t.Fatalf("expected non-empty file: %v", err)
	}
}
