package extract

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/fetch"
)

// DensityStrategy strips boilerplate by picking the container whose direct
// paragraphs carry the most non-link text, then reading only prose blocks
// below it. It ignores metadata entirely.
type DensityStrategy struct{}

func (DensityStrategy) Name() string { return "specialized" }

// minParagraph drops captions, bylines and button labels.
const minParagraph = 40

func (DensityStrategy) Parse(page *fetch.Page) (article.Record, error) {
	if page.IsPDF() {
		return article.Record{}, errors.New("pdf not supported")
	}
	body, err := page.UTF8()
	if err != nil {
		return article.Record{}, err
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return article.Record{}, fmt.Errorf("parse html: %w", err)
	}
	best := densestContainer(doc)
	if best == nil {
		return article.Record{}, errors.New("no prose container")
	}
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElement(n) {
				return
			}
			switch strings.ToLower(n.Data) {
			case "p", "blockquote", "li":
				if t := textContent(n); len(t) >= minParagraph || strings.EqualFold(n.Data, "blockquote") && t != "" {
					blocks = append(blocks, t)
				}
				return
			case "h2", "h3", "h4":
				if t := textContent(n); t != "" {
					blocks = append(blocks, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(best)
	// Trailing headings are usually "Related" or "More from" rails.
	for len(blocks) > 0 && len(blocks[len(blocks)-1]) < minParagraph {
		blocks = blocks[:len(blocks)-1]
	}
	return article.Record{Source: page.URL, Text: strings.Join(blocks, "\n")}, nil
}

// densestContainer scores each element by the non-link text of its direct
// paragraph children. Parents receive a share of a child's score so that a
// body split across sibling wrappers still converges on their common parent.
func densestContainer(doc *html.Node) *html.Node {
	scores := map[*html.Node]float64{}
	for _, p := range findAll(doc, "p") {
		if insideSkipped(p) {
			continue
		}
		text := textContent(p)
		if len(text) < minParagraph {
			continue
		}
		score := float64(len(text)) * (1 - linkDensity(p, len(text)))
		if parent := p.Parent; parent != nil {
			scores[parent] += score
			if gp := parent.Parent; gp != nil {
				scores[gp] += score / 2
			}
		}
	}
	var best *html.Node
	var bestScore float64
	for n, s := range scores {
		if s > bestScore {
			best, bestScore = n, s
		}
	}
	return best
}

func insideSkipped(n *html.Node) bool {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && skippedElement(cur) {
			return true
		}
	}
	return false
}

func linkDensity(n *html.Node, total int) float64 {
	if total == 0 {
		return 0
	}
	linked := 0
	for _, a := range findAll(n, "a") {
		linked += len(textContent(a))
	}
	d := float64(linked) / float64(total)
	if d > 1 {
		return 1
	}
	return d
}
