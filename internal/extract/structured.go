package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/fetch"
)

// StructuredStrategy reads schema.org JSON-LD and Open Graph metadata and
// takes the body from the article element. PDF pages go to the PDF reader.
type StructuredStrategy struct{}

func (StructuredStrategy) Name() string { return "structured" }

func (StructuredStrategy) Parse(page *fetch.Page) (article.Record, error) {
	if page.IsPDF() {
		return parsePDF(page)
	}
	body, err := page.UTF8()
	if err != nil {
		return article.Record{}, err
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return article.Record{}, fmt.Errorf("parse html: %w", err)
	}

	ld := readJSONLD(doc)
	meta := readMeta(doc)
	rec := article.Record{Source: page.URL}

	rec.Title = firstNonEmpty(ld.Headline, meta["og:title"], meta["twitter:title"], headingIn(doc), documentTitle(doc))

	rec.Authors = ld.Authors
	if len(rec.Authors) == 0 {
		rec.Authors = metaAuthors(doc, meta)
	}

	for _, cand := range []string{ld.DatePublished, meta["article:published_time"], meta["datepublished"], meta["date"],
		meta["pubdate"], meta["publishdate"], meta["dc.date"], meta["citation_publication_date"], timeIn(doc)} {
		if d, ok := parseDate(cand); ok {
			rec.PublishDate = d
			break
		}
	}

	if root := contentRoot(doc); root != nil {
		var b strings.Builder
		collectText(&b, root, false)
		rec.Text = normalizeWhitespace(b.String())
	}
	// Some sites render the body client-side and only ship it in JSON-LD.
	if len(ld.ArticleBody) > len(rec.Text) {
		rec.Text = normalizeWhitespace(ld.ArticleBody)
	}
	if strings.TrimSpace(rec.Text) == "" {
		return rec, errors.New("no article body")
	}
	return rec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// contentRoot picks the element most likely to hold only the article.
func contentRoot(doc *html.Node) *html.Node {
	var byProp *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if byProp != nil {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(attr(n, "itemprop"), "articleBody") {
			byProp = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if byProp != nil {
		return byProp
	}
	for _, tag := range []string{"article", "main", "body"} {
		if n := findFirst(doc, tag); n != nil {
			return n
		}
	}
	return nil
}

func headingIn(doc *html.Node) string {
	for _, tag := range []string{"article", "main"} {
		if root := findFirst(doc, tag); root != nil {
			if h := findFirst(root, "h1"); h != nil {
				return textContent(h)
			}
		}
	}
	return ""
}

func timeIn(doc *html.Node) string {
	root := contentRoot(doc)
	if root == nil {
		return ""
	}
	if t := findFirst(root, "time"); t != nil {
		return firstNonEmpty(attr(t, "datetime"), textContent(t))
	}
	return ""
}

// readMeta maps lower-cased meta name/property/itemprop to content. The first
// occurrence wins.
func readMeta(doc *html.Node) map[string]string {
	out := map[string]string{}
	for _, m := range findAll(doc, "meta") {
		content := strings.TrimSpace(attr(m, "content"))
		if content == "" {
			continue
		}
		for _, k := range []string{"property", "name", "itemprop"} {
			key := strings.ToLower(strings.TrimSpace(attr(m, k)))
			if key == "" {
				continue
			}
			if _, seen := out[key]; !seen {
				out[key] = content
			}
		}
	}
	return out
}

func metaAuthors(doc *html.Node, meta map[string]string) []string {
	var out []string
	for _, m := range findAll(doc, "meta") {
		key := strings.ToLower(firstNonEmpty(attr(m, "name"), attr(m, "property")))
		if key != "author" && key != "article:author" && key != "dc.creator" && key != "sailthru.author" {
			continue
		}
		v := strings.TrimSpace(attr(m, "content"))
		if v == "" || strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			continue
		}
		out = appendAuthors(out, v)
	}
	if len(out) > 0 {
		return out
	}
	for _, a := range findAll(doc, "a") {
		if strings.EqualFold(attr(a, "rel"), "author") {
			out = appendAuthors(out, textContent(a))
		}
	}
	return out
}

// appendAuthors adds a possibly comma or "and" separated list, skipping repeats.
func appendAuthors(out []string, v string) []string {
	v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "By "))
	for _, part := range strings.FieldsFunc(strings.ReplaceAll(v, " and ", ","), func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dup := false
		for _, have := range out {
			if strings.EqualFold(have, part) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, part)
		}
	}
	return out
}

type ldArticle struct {
	Headline      string
	Authors       []string
	DatePublished string
	ArticleBody   string
}

var articleTypes = map[string]bool{
	"article": true, "newsarticle": true, "blogposting": true, "reportagenewsarticle": true,
	"analysisnewsarticle": true, "opinionnewsarticle": true, "scholarlyarticle": true, "techarticle": true,
}

// readJSONLD returns the first schema.org Article found in any
// application/ld+json script, including inside @graph arrays.
func readJSONLD(doc *html.Node) ldArticle {
	for _, s := range findAll(doc, "script") {
		if !strings.EqualFold(strings.TrimSpace(attr(s, "type")), "application/ld+json") {
			continue
		}
		var raw any
		if err := json.Unmarshal([]byte(textContentRaw(s)), &raw); err != nil {
			continue
		}
		if a, ok := findLDArticle(raw); ok {
			return a
		}
	}
	return ldArticle{}
}

func textContentRaw(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func findLDArticle(v any) (ldArticle, bool) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if a, ok := findLDArticle(item); ok {
				return a, true
			}
		}
	case map[string]any:
		if isArticleType(t["@type"]) {
			return ldArticle{
				Headline:      ldString(t["headline"]),
				Authors:       ldNames(t["author"]),
				DatePublished: ldString(t["datePublished"]),
				ArticleBody:   ldString(t["articleBody"]),
			}, true
		}
		if g, ok := t["@graph"]; ok {
			return findLDArticle(g)
		}
	}
	return ldArticle{}, false
}

func isArticleType(v any) bool {
	switch t := v.(type) {
	case string:
		return articleTypes[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if isArticleType(item) {
				return true
			}
		}
	}
	return false
}

func ldString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			return ldString(t[0])
		}
	}
	return ""
}

func ldNames(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		out = appendAuthors(out, t)
	case map[string]any:
		if n := ldString(t["name"]); n != "" {
			out = appendAuthors(out, n)
		}
	case []any:
		for _, item := range t {
			for _, n := range ldNames(item) {
				out = appendAuthors(out, n)
			}
		}
	}
	return out
}
