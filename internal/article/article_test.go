package article

import "testing"

func TestNew_AllSentinels(t *testing.T) {
	r := New("https://example.com/a")
	if r.Title != UnknownTitle || r.PublishDate != UnknownDate || r.Text != "" {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	if len(r.Authors) != 1 || r.Authors[0] != UnknownAuthor {
		t.Fatalf("expected single unknown author, got %v", r.Authors)
	}
	if r.Source != "https://example.com/a" {
		t.Fatalf("expected source to be the url, got %q", r.Source)
	}
	if !r.Empty() {
		t.Fatalf("expected empty record")
	}
}

func TestWithDefaults_DropsBlankAuthors(t *testing.T) {
	r := Record{Authors: []string{" ", ""}, Source: "x"}.WithDefaults()
	if r.Title != UnknownTitle || r.Authors[0] != UnknownAuthor || r.PublishDate != UnknownDate {
		t.Fatalf("expected sentinels, got %+v", r)
	}
}

func TestIntro_Format(t *testing.T) {
	r := Record{Title: "Hi", Source: "https://example.com/a", Authors: []string{"Ann", "Bo"}, PublishDate: "2024-05-01"}
	want := "Title: Hi. Source: https://example.com/a. Author(s): Ann, Bo. Published on: 2024-05-01."
	if got := r.Intro(); got != want {
		t.Fatalf("intro mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestHumanSource(t *testing.T) {
	cases := map[string]string{
		"https://www.nytimes.com/2024/01/01/x.html": "New_York_Times",
		"https://bbc.com/news":                      "BBC",
		"https://example.com/a":                     "Example_Com",
		"https://blog.my-site.org/post":             "Blog_My_Site_Org",
		"":                                          UnknownSource,
	}
	for in, want := range cases {
		if got := HumanSource(in); got != want {
			t.Fatalf("HumanSource(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummarize_FirstAuthor(t *testing.T) {
	s := Record{Title: "T", Source: "https://defector.com/x", Authors: []string{"A", "B"}, PublishDate: "2020-01-02"}.Summarize()
	if s.Author != "A" || s.Source != "Defector" || s.Title != "T" {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestValidURL(t *testing.T) {
	if ValidURL("bad-url") {
		t.Fatalf("expected bad-url to be invalid")
	}
	if !ValidURL("https://example.com/a") {
		t.Fatalf("expected https url to be valid")
	}
	if ValidURL("example.com/a") {
		t.Fatalf("expected scheme-less url to be invalid")
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Example.COM/a?utm_source=x&id=7#top": "https://example.com/a?id=7",
		"https://example.com/a?fbclid=1":              "https://example.com/a",
		"  https://example.com/b  ":                   "https://example.com/b",
	}
	for in, want := range cases {
		if got := CanonicalURL(in); got != want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", in, got, want)
		}
	}
}
