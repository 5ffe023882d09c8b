package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/audio"
	"github.com/hyperifyio/speakloud/internal/extract"
	"github.com/hyperifyio/speakloud/internal/fetch"
	"github.com/hyperifyio/speakloud/internal/metadata"
	"github.com/hyperifyio/speakloud/internal/retry"
	"github.com/hyperifyio/speakloud/internal/storage"
	"github.com/hyperifyio/speakloud/internal/tts"
)

const scenarioURL = "https://example.com/a"

const scenarioHTML = `<html><head><title>Hi</title></head><body><p>One.</p><p>One.</p><p>Two.</p></body></html>`

// pages serves fixed bodies by URL.
type pages map[string]string

func (p pages) Get(_ context.Context, url string) (*fetch.Page, error) {
	body, ok := p[url]
	if !ok {
		return nil, &fetch.StatusError{Code: 404, URL: url}
	}
	return &fetch.Page{URL: url, FinalURL: url, ContentType: "text/html; charset=utf-8", Body: []byte(body)}, nil
}

// noStructure simulates the structured parser finding nothing.
type noStructure struct{}

func (noStructure) Name() string { return "structured" }
func (noStructure) Parse(*fetch.Page) (article.Record, error) {
	return article.Record{}, errors.New("no article markup")
}

// silence returns MPEG-1 Layer III frames: 38 for the intro, 77 for body
// chunks, so the two scenario segments last about 1s and 2s.
type silence struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

const (
	frameLen     = 417
	frameSeconds = 1152.0 / 44100.0
)

func frames(n int) []byte {
	b := make([]byte, 0, n*frameLen)
	for i := 0; i < n; i++ {
		f := make([]byte, frameLen)
		copy(f, []byte{0xFF, 0xFB, 0x90, 0x00})
		b = append(b, f...)
	}
	return b
}

func (s *silence) Name() string { return "silence" }

func (s *silence) Synthesize(_ context.Context, text string, _ tts.Voice) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if strings.HasPrefix(text, "Title:") {
		return frames(38), nil
	}
	return frames(77), nil
}

func (s *silence) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	p        *Pipeline
	provider *silence
	store    *metadata.MemoryStore
	pubDir   string
	dlDir    string
	tmpDir   string
	stages   []Stage
	mu       sync.Mutex
}

func newFixture(t *testing.T, site pages) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		provider: &silence{},
		store:    metadata.NewMemoryStore(),
		pubDir:   filepath.Join(root, "pub"),
		dlDir:    filepath.Join(root, "downloads"),
		tmpDir:   filepath.Join(root, "tmp"),
	}
	if err := os.MkdirAll(f.tmpDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ex := extract.New(site, site, nil)
	ex.Primary = noStructure{}
	f.p = &Pipeline{
		Extractor: ex,
		Synthesizer: &tts.Synthesizer{
			Provider: f.provider,
			Retry:    retry.Policy{MaxAttempts: 3, Base: 2, Sleep: retry.NoSleep},
			TempDir:  f.tmpDir,
		},
		Assembler:    &audio.Assembler{Normalizer: audio.PassthroughNormalizer{}, TempDir: f.tmpDir},
		Uploader:     storage.Local{Dir: f.pubDir, BaseURL: "https://cdn.test/audio"},
		Store:        f.store,
		Voice:        tts.DefaultVoice(),
		DownloadsDir: f.dlDir,
		OnStage: func(_ string, s Stage) {
			f.mu.Lock()
			f.stages = append(f.stages, s)
			f.mu.Unlock()
		},
		now: func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) },
	}
	return f
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	es, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range es {
		names = append(names, e.Name())
	}
	return names
}

func TestProcess_FallbackScenarioEndToEnd(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	res, err := f.p.Process(context.Background(), scenarioURL, []string{"#Test"}, "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(f.provider.calls) != 2 {
		t.Fatalf("expected intro + body synthesis, got %d calls: %q", len(f.provider.calls), f.provider.calls)
	}
	if !strings.HasPrefix(f.provider.calls[0], "Title: Hi. Source: https://example.com/a.") {
		t.Fatalf("first chunk should announce provenance: %q", f.provider.calls[0])
	}
	if f.provider.calls[1] != "One.\n\nTwo." && f.provider.calls[1] != "One. Two." {
		t.Fatalf("body chunk = %q", f.provider.calls[1])
	}

	want := (38 + 77) * frameSeconds
	if math.Abs(res.DurationSeconds-want) > 0.01 {
		t.Fatalf("duration = %v, want ≈%v", res.DurationSeconds, want)
	}
	if res.DownloadLink != "https://cdn.test/audio/2024-03-05_example_com_hi.mp3" {
		t.Fatalf("link = %s", res.DownloadLink)
	}
	if got := dirEntries(t, f.pubDir); len(got) != 1 {
		t.Fatalf("published files = %v", got)
	}
	if got := dirEntries(t, f.dlDir); len(got) != 0 {
		t.Fatalf("local copy should be removed after upload: %v", got)
	}
	if got := dirEntries(t, f.tmpDir); len(got) != 0 {
		t.Fatalf("temporary segments left behind: %v", got)
	}

	a, err := f.store.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "Hi" || a.TextContent != "One.\n\nTwo." || a.URL != scenarioURL || a.Source != "Example_Com" {
		t.Fatalf("stored %+v", a)
	}
	if a.Hashtags[0] != "test" || a.AudioLength == nil || *a.AudioLength != metadata.RoundSeconds(want) {
		t.Fatalf("stored %+v", a)
	}
	if f.stages[len(f.stages)-1] != StageDone {
		t.Fatalf("stages = %v", f.stages)
	}
}

func TestProcess_IdempotentSecondCall(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	first, err := f.p.Process(context.Background(), scenarioURL, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	calls := f.provider.count()
	second, err := f.p.Process(context.Background(), scenarioURL, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if second.DownloadLink != first.DownloadLink || !second.Reused {
		t.Fatalf("second run = %+v, first = %+v", second, first)
	}
	if f.provider.count() != calls {
		t.Fatalf("synthesizer invoked again: %d -> %d", calls, f.provider.count())
	}
}

func TestProcess_InvalidURL(t *testing.T) {
	f := newFixture(t, pages{})
	_, err := f.p.Process(context.Background(), "bad-url", nil, "")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if f.provider.count() != 0 {
		t.Fatal("synthesizer must not run")
	}
}

func TestProcess_ExtractFailed(t *testing.T) {
	f := newFixture(t, pages{})
	_, err := f.p.Process(context.Background(), "https://example.com/missing", nil, "")
	if !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("expected ErrExtractFailed, got %v", err)
	}
	found := false
	for _, s := range f.stages {
		if s == StageExtractFailed {
			found = true
		}
	}
	if !found || f.stages[len(f.stages)-1] != StageFailed {
		t.Fatalf("stages = %v", f.stages)
	}
}

func TestProcess_SynthesisFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	f.provider.fail = errors.New("503 backend unavailable")
	_, err := f.p.Process(context.Background(), scenarioURL, nil, "")
	var ce *tts.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if ce.Attempts != 3 {
		t.Fatalf("attempts = %d", ce.Attempts)
	}
	if got := dirEntries(t, f.pubDir); len(got) != 0 {
		t.Fatalf("nothing may be uploaded: %v", got)
	}
	if got := dirEntries(t, f.tmpDir); len(got) != 0 {
		t.Fatalf("segments left behind: %v", got)
	}
	if list, _ := f.store.List(context.Background(), 0); len(list) != 0 {
		t.Fatalf("metadata saved for failed run")
	}
}

func TestProcess_VoiceOverride(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	res, err := f.p.Process(context.Background(), scenarioURL, nil, "en-US-Wavenet-D")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := f.store.Get(context.Background(), res.ID)
	if a.VoiceName != "en-US-Wavenet-D" {
		t.Fatalf("voice = %q", a.VoiceName)
	}
}

func TestProcessBatch_ReportsPerURL(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	reports := f.p.ProcessBatch(context.Background(), []string{"bad-url", scenarioURL}, nil, "")
	if len(reports) != 2 {
		t.Fatalf("reports = %+v", reports)
	}
	if reports[0].URL != "bad-url" || reports[0].Status != StatusFailed || reports[0].Error != "Invalid URL" {
		t.Fatalf("bad url report = %+v", reports[0])
	}
	if reports[1].Status != StatusSuccess || reports[1].DownloadLink == "" {
		t.Fatalf("valid url report = %+v", reports[1])
	}
	if Failed(reports) != 1 {
		t.Fatalf("failed = %d", Failed(reports))
	}
}

func TestProcessBatch_DuplicatesProcessedOnce(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	urls := []string{scenarioURL, scenarioURL + "#comments", scenarioURL + "?utm_source=feed"}
	reports := f.p.ProcessBatch(context.Background(), urls, nil, "")
	for i, r := range reports {
		if r.URL != urls[i] || r.Status != StatusSuccess || r.DownloadLink != reports[0].DownloadLink {
			t.Fatalf("report %d = %+v", i, r)
		}
	}
	if n := f.provider.count(); n != 2 {
		t.Fatalf("provider calls = %d, want 2", n)
	}
	list, err := f.store.List(context.Background(), 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("stored = %d, %v", len(list), err)
	}
}

func TestProcessBatch_ConcurrentRunsGetDistinctFiles(t *testing.T) {
	site := pages{}
	var urls []string
	for i := 0; i < 6; i++ {
		u := fmt.Sprintf("https://example.com/%d", i)
		site[u] = scenarioHTML
		urls = append(urls, u)
	}
	f := newFixture(t, site)
	f.p.Concurrency = 3
	f.p.KeepLocal = true
	reports := f.p.ProcessBatch(context.Background(), urls, nil, "")
	seen := map[string]bool{}
	for _, r := range reports {
		if r.Status != StatusSuccess {
			t.Fatalf("report = %+v", r)
		}
		if seen[r.DownloadLink] {
			t.Fatalf("duplicate link %s", r.DownloadLink)
		}
		seen[r.DownloadLink] = true
	}
	if got := dirEntries(t, f.dlDir); len(got) != len(urls) {
		t.Fatalf("downloads = %v", got)
	}
}

func TestProcess_SameTitleArticlesNeverOverwriteUploads(t *testing.T) {
	second := "https://example.com/b"
	f := newFixture(t, pages{scenarioURL: scenarioHTML, second: scenarioHTML})
	a, err := f.p.Process(context.Background(), scenarioURL, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.p.Process(context.Background(), second, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.DownloadLink == b.DownloadLink {
		t.Fatalf("both articles published at %s", a.DownloadLink)
	}
	if got := dirEntries(t, f.pubDir); len(got) != 2 {
		t.Fatalf("published = %v", got)
	}
	if got := dirEntries(t, f.dlDir); len(got) != 0 {
		t.Fatalf("downloads should be cleaned up: %v", got)
	}
}

func TestPreview(t *testing.T) {
	f := newFixture(t, pages{scenarioURL: scenarioHTML})
	sum, err := f.p.Preview(context.Background(), scenarioURL)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Title != "Hi" || sum.Author != article.UnknownAuthor || sum.PublishDate != article.UnknownDate {
		t.Fatalf("summary = %+v", sum)
	}
	if f.provider.count() != 0 {
		t.Fatal("preview must not synthesize")
	}
	if _, err := f.p.Preview(context.Background(), "https://example.com/missing"); !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("expected ErrExtractFailed, got %v", err)
	}
}
