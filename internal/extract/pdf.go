package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/fetch"
)

// parsePDF reads the plain text of every page plus the Title and Author
// entries of the document info dictionary.
func parsePDF(page *fetch.Page) (rec article.Record, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(page.Body), int64(len(page.Body)))
	if err != nil {
		return article.Record{}, fmt.Errorf("open pdf: %w", err)
	}
	rec.Source = page.URL

	info := r.Trailer().Key("Info")
	rec.Title = strings.TrimSpace(info.Key("Title").Text())
	if a := strings.TrimSpace(info.Key("Author").Text()); a != "" {
		rec.Authors = appendAuthors(nil, a)
	}
	if d, ok := pdfDate(info.Key("CreationDate").Text()); ok {
		rec.PublishDate = d
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := normalizeWhitespace(text); t != "" {
			pages = append(pages, t)
		}
	}
	rec.Text = strings.Join(pages, "\n")
	if rec.Text == "" {
		return rec, errors.New("pdf has no extractable text")
	}
	return rec, nil
}

// pdfDate converts a "D:YYYYMMDD..." info date.
func pdfDate(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 8 {
		return "", false
	}
	return parseDate(s[:8])
}
