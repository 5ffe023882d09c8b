// Package article holds the extracted article record shared by the
// extraction, chunking and persistence stages.
package article

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Sentinel defaults substituted when real data is unavailable.
const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
	UnknownDate   = "Unknown Date"
	UnknownSource = "Unknown Source"
)

// Record is the result of one extraction attempt. Every field always carries
// a value; an empty Text means extraction failed.
type Record struct {
	Title       string   `json:"title"`
	Text        string   `json:"text"`
	Authors     []string `json:"authors"`
	PublishDate string   `json:"publish_date"`
	Source      string   `json:"source"`
}

// New returns a record for sourceURL populated with sentinel defaults.
func New(sourceURL string) Record {
	return Record{
		Title:       UnknownTitle,
		Authors:     []string{UnknownAuthor},
		PublishDate: UnknownDate,
		Source:      sourceURL,
	}
}

// Empty reports whether the record carries no usable text.
func (r Record) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// WithDefaults fills any blank field with its sentinel and returns the copy.
func (r Record) WithDefaults() Record {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = UnknownTitle
	}
	authors := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	if len(authors) == 0 {
		authors = []string{UnknownAuthor}
	}
	r.Authors = authors
	if strings.TrimSpace(r.PublishDate) == "" {
		r.PublishDate = UnknownDate
	}
	return r
}

// FirstAuthor returns the first listed author or the sentinel.
func (r Record) FirstAuthor() string {
	for _, a := range r.Authors {
		if s := strings.TrimSpace(a); s != "" {
			return s
		}
	}
	return UnknownAuthor
}

// Intro formats the record's metadata into the spoken provenance sentence
// that precedes the article body.
func (r Record) Intro() string {
	src := r.Source
	if strings.TrimSpace(src) == "" {
		src = UnknownSource
	}
	return fmt.Sprintf("Title: %s. Source: %s. Author(s): %s. Published on: %s.",
		r.Title, src, strings.Join(r.WithDefaults().Authors, ", "), r.PublishDate)
}

// Summary is the flattened metadata used for storage and preview.
type Summary struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishDate string `json:"publish_date"`
	Author      string `json:"authors"`
}

// Summarize derives the human-facing metadata of r.
func (r Record) Summarize() Summary {
	return Summary{
		Title:       r.WithDefaults().Title,
		Source:      HumanSource(r.Source),
		PublishDate: r.WithDefaults().PublishDate,
		Author:      r.FirstAuthor(),
	}
}

var sourceNames = map[string]string{
	"theatlantic.com":    "The_Atlantic",
	"newyorker.com":      "The_New_Yorker",
	"washingtonpost.com": "Washington_Post",
	"defector.com":       "Defector",
	"nytimes.com":        "New_York_Times",
	"bbc.com":            "BBC",
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// HumanSource maps a URL to a readable publisher name such as "New_York_Times".
// Unknown hosts are turned into underscore-separated title case.
func HumanSource(raw string) string {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(strings.ReplaceAll(host, "www.", ""))
	if name, ok := sourceNames[host]; ok {
		return name
	}
	if host == "" {
		return UnknownSource
	}
	return titleWords(nonAlnum.ReplaceAllString(host, "_"))
}

// titleWords upper-cases the first letter of each alphanumeric run.
func titleWords(s string) string {
	b := []byte(s)
	start := true
	for i, c := range b {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		switch {
		case isLetter && start:
			if c >= 'a' && c <= 'z' {
				b[i] = c - 'a' + 'A'
			}
			start = false
		case isLetter:
			if c >= 'A' && c <= 'Z' {
				b[i] = c - 'A' + 'a'
			}
		default:
			start = true
		}
	}
	return string(b)
}

// ValidURL reports whether raw parses with both a scheme and a host.
func ValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// CanonicalURL drops the fragment and common tracking parameters and
// lowercases the scheme and host, so links shared from different places
// compare equal. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
