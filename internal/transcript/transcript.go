// Package transcript renders the narrated text of an article as a PDF that is
// published next to its audio.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/jung-kurt/gofpdf"
)

// Render writes a PDF of rec to w: title, provenance block, then the body
// paragraphs as they were narrated.
func Render(w io.Writer, rec article.Record) error {
	rec = rec.WithDefaults()
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(rec.Title, true)
	pdf.SetAuthor(strings.Join(rec.Authors, ", "), true)
	pdf.SetCreator("speakloud", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(rec.Title), "", "L", false)
	pdf.Ln(2)

	sum := rec.Summarize()
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s | %s | %s", sum.Source, strings.Join(rec.Authors, ", "), rec.PublishDate)), "", 1, "L", false, 0, "")
	if article.ValidURL(rec.Source) {
		pdf.WriteLinkString(5, tr(rec.Source), rec.Source)
		pdf.Ln(5)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	scanner := bufio.NewScanner(strings.NewReader(rec.Text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
		pdf.Ln(3)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}
	return nil
}

// RenderFile writes the transcript of rec to path.
func RenderFile(path string, rec article.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, rec); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
