package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/fetch"
	"github.com/hyperifyio/speakloud/internal/retry"
)

func newClient() *fetch.Client {
	return &fetch.Client{Retry: retry.Policy{MaxAttempts: 2, Sleep: retry.NoSleep}, PerRequestTimeout: 2 * time.Second}
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Parse(*fetch.Page) (article.Record, error) {
	return article.Record{}, errors.New("simulated failure")
}

const newsPage = `<!doctype html><html><head>
<title>Site | A headline</title>
<meta property="og:title" content="OG headline">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[{"@type":"WebSite","name":"Site"},
 {"@type":"NewsArticle","headline":"The real headline","datePublished":"2024-03-05T08:00:00Z",
  "author":[{"@type":"Person","name":"Ada Lovelace"},{"@type":"Person","name":"Charles Babbage"}]}]}
</script></head>
<body>
<nav><p>Home News Sport</p></nav>
<div class="cookie-banner"><p>We use cookies to improve your experience on this site.</p></div>
<article>
<h1>The real headline</h1>
<p>First paragraph of the story.</p>
<p>Second paragraph with <a href="/x">a link</a> inside.</p>
<p>First paragraph of the story.</p>
</article>
<footer><p>Copyright</p></footer>
</body></html>`

func TestExtract_StructuredUsesJSONLD(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", newsPage)
	c := newClient()
	rec := New(c, c, nil).Extract(context.Background(), srv.URL)

	if rec.Title != "The real headline" {
		t.Fatalf("title = %q", rec.Title)
	}
	if strings.Join(rec.Authors, "|") != "Ada Lovelace|Charles Babbage" {
		t.Fatalf("authors = %q", rec.Authors)
	}
	if rec.PublishDate != "2024-03-05" {
		t.Fatalf("date = %q", rec.PublishDate)
	}
	if strings.Contains(rec.Text, "cookies") || strings.Contains(rec.Text, "Home News") || strings.Contains(rec.Text, "Copyright") {
		t.Fatalf("boilerplate leaked into text: %q", rec.Text)
	}
	if strings.Count(rec.Text, "First paragraph of the story.") != 1 {
		t.Fatalf("duplicate paragraph not removed: %q", rec.Text)
	}
	if !strings.Contains(rec.Text, "Second paragraph with a link inside.") {
		t.Fatalf("missing body text: %q", rec.Text)
	}
	if rec.Source != srv.URL {
		t.Fatalf("source = %q", rec.Source)
	}
}

func TestExtract_MetaTagsAndDateFormatting(t *testing.T) {
	page := `<html><head><title>T</title>
<meta property="og:title" content="Meta title">
<meta name="author" content="Grace Hopper">
<meta property="article:published_time" content="Tue, 05 Mar 2024 10:00:00 GMT">
</head><body><main><p>Body sentence one.</p></main></body></html>`
	srv := serve(t, "text/html", page)
	c := newClient()
	rec := New(c, c, nil).Extract(context.Background(), srv.URL)
	if rec.Title != "Meta title" || rec.FirstAuthor() != "Grace Hopper" || rec.PublishDate != "2024-03-05" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestExtract_FallbackScenario(t *testing.T) {
	srv := serve(t, "text/html", `<html><head><title>Hi</title></head><body><p>One.</p><p>One.</p><p>Two.</p></body></html>`)
	c := newClient()
	e := New(c, c, nil)
	e.Primary = failing{}
	rec := e.Extract(context.Background(), srv.URL)
	if rec.Title != "Hi" {
		t.Fatalf("title = %q", rec.Title)
	}
	if rec.Text != "One.\n\nTwo." {
		t.Fatalf("text = %q", rec.Text)
	}
	if rec.PublishDate != article.UnknownDate || rec.FirstAuthor() != article.UnknownAuthor {
		t.Fatalf("sentinels missing: %+v", rec)
	}
}

func TestExtract_UnparseableDateKeepsSentinel(t *testing.T) {
	srv := serve(t, "text/html", `<html><head><title>x</title><meta name="date" content="sometime last week"></head><body><p>Text.</p></body></html>`)
	c := newClient()
	e := New(c, c, nil)
	e.Primary = failing{}
	rec := e.Extract(context.Background(), srv.URL)
	if rec.PublishDate != article.UnknownDate {
		t.Fatalf("date = %q", rec.PublishDate)
	}
	if rec.Text != "Text." {
		t.Fatalf("text = %q", rec.Text)
	}
}

func TestExtract_UnreachableURLReturnsSentinels(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone"
	srv.Close()

	c := newClient()
	rec := New(c, c, nil).Extract(context.Background(), url)
	if rec.Text != "" {
		t.Fatalf("expected empty text, got %q", rec.Text)
	}
	if rec.Title != article.UnknownTitle || rec.PublishDate != article.UnknownDate || rec.FirstAuthor() != article.UnknownAuthor {
		t.Fatalf("expected sentinels, got %+v", rec)
	}
	if rec.Source != url {
		t.Fatalf("source = %q", rec.Source)
	}
}

func TestExtract_SpecializedDomainUsesURLAsTitle(t *testing.T) {
	para := strings.Repeat("This paragraph carries the actual reporting of the piece. ", 3)
	page := `<html><head><title>Ignored</title></head><body>
<div class="rail"><p><a href="/1">Related story one that is long enough to count here</a></p></div>
<div class="story"><p>` + para + `</p><p>` + para + `</p><h3>More from us</h3></div>
</body></html>`
	srv := serve(t, "text/html", page)
	c := newClient()
	e := New(c, c, []string{"127.0.0.1"})
	rec := e.Extract(context.Background(), srv.URL)
	if rec.Title != srv.URL {
		t.Fatalf("title = %q, want URL", rec.Title)
	}
	if strings.Contains(rec.Text, "Related story") || strings.Contains(rec.Text, "More from us") {
		t.Fatalf("rail leaked: %q", rec.Text)
	}
	if !strings.Contains(rec.Text, "actual reporting") {
		t.Fatalf("missing body: %q", rec.Text)
	}
}

func TestMatchesDomain(t *testing.T) {
	domains := []string{"newyorker.com"}
	if !matchesDomain("https://www.newyorker.com/x", domains) || !matchesDomain("https://magazine.newyorker.com/x", domains) {
		t.Fatal("expected match")
	}
	if matchesDomain("https://notnewyorker.com/x", domains) {
		t.Fatal("unexpected suffix match")
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":                "2024-03-05",
		"2024-03-05T08:00:00+02:00": "2024-03-05",
		"March 5, 2024":             "2024-03-05",
		"2024-03-05T08:00:00.000-0500 extra": "2024-03-05",
	}
	for in, want := range cases {
		if got, ok := parseDate(in); !ok || got != want {
			t.Errorf("parseDate(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := parseDate("not a date"); ok {
		t.Error("expected failure")
	}
}
