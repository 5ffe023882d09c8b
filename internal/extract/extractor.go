// Package extract turns a fetched article page into an article.Record by
// trying a cascade of strategies until one yields text. Extraction never
// fails outright: when nothing works the caller gets a record with sentinel
// metadata and empty text.
package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/dedupe"
	"github.com/hyperifyio/speakloud/internal/fetch"
	"github.com/hyperifyio/speakloud/internal/observe"
)

// Fetcher downloads a page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

// Strategy parses an already downloaded page.
type Strategy interface {
	Name() string
	Parse(page *fetch.Page) (article.Record, error)
}

// DefaultSpecializedDomains are publishers whose markup defeats the
// structured parser often enough to warrant density-based extraction.
var DefaultSpecializedDomains = []string{
	"newyorker.com",
	"theatlantic.com",
	"washingtonpost.com",
	"nytimes.com",
}

// Extractor runs the cascade: specialized domains, structured parse, generic
// fallback. The zero value is not usable; build one with New.
type Extractor struct {
	// Fetcher downloads with the retry policy.
	Fetcher Fetcher
	// Fallback is the single plain download used when Fetcher gave up.
	Fallback Fetcher

	Specialized        Strategy
	SpecializedDomains []string
	Primary            Strategy
	Generic            Strategy

	Metrics *observe.Metrics
}

// New wires the default strategies.
func New(primary, fallback Fetcher, specializedDomains []string) *Extractor {
	if specializedDomains == nil {
		specializedDomains = DefaultSpecializedDomains
	}
	return &Extractor{
		Fetcher:            primary,
		Fallback:           fallback,
		Specialized:        DensityStrategy{},
		SpecializedDomains: specializedDomains,
		Primary:            StructuredStrategy{},
		Generic:            GenericStrategy{},
	}
}

// Extract returns the best record it can build for rawURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string) article.Record {
	empty := article.New(rawURL)

	page, err := e.Fetcher.Get(ctx, rawURL)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("structured download failed; trying plain fallback")
		page = nil
	}

	if page != nil {
		if e.Specialized != nil && matchesDomain(rawURL, e.SpecializedDomains) {
			if rec, ok := e.try(e.Specialized, page); ok {
				// This path has no reliable title source.
				rec.Title = rawURL
				log.Debug().Str("url", rawURL).Msg("specialized extraction uses the URL as title")
				return e.finish(ctx, e.Specialized.Name(), rawURL, rec)
			}
		}
		if rec, ok := e.try(e.Primary, page); ok {
			return e.finish(ctx, e.Primary.Name(), rawURL, rec)
		}
	}

	fb := page
	if fb == nil {
		f := e.Fallback
		if f == nil {
			f = e.Fetcher
		}
		fb, err = f.Get(ctx, rawURL)
		if err != nil {
			log.Error().Err(err).Str("url", rawURL).Msg("fallback download failed")
			return empty
		}
	}
	rec, ok := e.try(e.Generic, fb)
	if ok {
		return e.finish(ctx, e.Generic.Name(), rawURL, rec)
	}
	log.Warn().Str("url", rawURL).Msg("no extraction strategy produced text")
	rec.Text = ""
	rec.Source = rawURL
	return rec.WithDefaults()
}

func (e *Extractor) try(s Strategy, page *fetch.Page) (article.Record, bool) {
	rec, err := s.Parse(page)
	if err != nil {
		log.Debug().Err(err).Str("strategy", s.Name()).Str("url", page.URL).Msg("strategy failed")
		return article.Record{}, false
	}
	if rec.Empty() {
		log.Debug().Str("strategy", s.Name()).Str("url", page.URL).Msg("strategy produced no text")
		return rec, false
	}
	return rec, true
}

// finish normalizes to NFC, drops repeated paragraphs and fills sentinels.
func (e *Extractor) finish(ctx context.Context, strategy, rawURL string, rec article.Record) article.Record {
	rec.Title = norm.NFC.String(strings.TrimSpace(rec.Title))
	rec.Text = dedupe.Paragraphs(norm.NFC.String(rec.Text))
	for i, a := range rec.Authors {
		rec.Authors[i] = norm.NFC.String(a)
	}
	rec.Source = rawURL
	rec = rec.WithDefaults()
	e.Metrics.RecordStrategy(ctx, strategy)
	log.Info().Str("url", rawURL).Str("strategy", strategy).Int("bytes", len(rec.Text)).Str("title", rec.Title).Msg("extracted article")
	return rec
}

func matchesDomain(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}
