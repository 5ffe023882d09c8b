package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/fetch"
)

// GenericStrategy is the permissive last resort: every non-empty paragraph
// on the page, with title, author and date from common meta tags.
type GenericStrategy struct{}

func (GenericStrategy) Name() string { return "fallback" }

func (GenericStrategy) Parse(page *fetch.Page) (article.Record, error) {
	if page.IsPDF() {
		return parsePDF(page)
	}
	body, err := page.UTF8()
	if err != nil {
		// Let goquery try the raw bytes.
		body = string(page.Body)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return article.Record{}, fmt.Errorf("parse html: %w", err)
	}
	rec := article.Record{Source: page.URL}

	rec.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		metaContent(doc, `meta[property="twitter:title"]`),
		doc.Find("title").First().Text(),
	)

	if a := metaContent(doc, `meta[name="author"]`); a != "" {
		rec.Authors = appendAuthors(nil, a)
	}

	rawDate := firstNonEmpty(
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[name="date"]`),
	)
	if rawDate != "" {
		if d, ok := parseDate(rawDate); ok {
			rec.PublishDate = d
		} else {
			log.Debug().Str("url", page.URL).Str("date", rawDate).Msg("unparseable publish date")
		}
	}

	var paras []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := collapseSpaces(strings.TrimSpace(s.Text())); t != "" {
			paras = append(paras, t)
		}
	})
	rec.Text = strings.Join(paras, "\n")
	if rec.Text == "" {
		return rec, errors.New("no paragraphs")
	}
	return rec, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}
