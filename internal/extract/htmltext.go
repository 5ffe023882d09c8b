package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// findFirst returns the first element named tag in document order.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// findAll returns every element named tag.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates all descendant text nodes.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpaces(strings.TrimSpace(b.String()))
}

func documentTitle(doc *html.Node) string {
	head := findFirst(doc, "head")
	if head == nil {
		return ""
	}
	if t := findFirst(head, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

// skippedElement reports elements that never carry article prose.
func skippedElement(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "form", "button", "svg", "figure", "header":
		return true
	}
	return isBoilerplateContainer(n)
}

// collectText writes the readable text below n, one block per line.
func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		if skippedElement(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "pre", "code":
			inPre = true
		case "br", "hr", "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "blockquote", "div", "section":
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
		}
		b.WriteString(data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
			b.WriteString("\n\n")
		case "li", "pre", "div", "section":
			b.WriteString("\n")
		}
	}
}

// isBoilerplateContainer matches cookie banners, share bars, newsletter
// prompts and similar chrome by id, class, role or aria-label.
func isBoilerplateContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if key != "id" && key != "class" && key != "aria-label" && key != "role" && !strings.HasPrefix(key, "data-") {
			continue
		}
		val := strings.ToLower(a.Val)
		if key == "role" && (val == "navigation" || val == "banner" || val == "complementary" || val == "contentinfo") {
			return true
		}
		if containsAny(val, boilerplateMarkers) {
			return true
		}
	}
	return false
}

var boilerplateMarkers = []string{
	"cookie", "consent", "gdpr", "newsletter", "subscribe", "paywall",
	"share-", "social-", "related-", "recommended", "advert", "promo", "comments",
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// normalizeWhitespace trims every line, collapses runs of spaces and keeps
// at most one blank line between blocks.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\u00a0' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
