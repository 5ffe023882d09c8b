package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/speakloud/internal/article"
)

func TestBaseName(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	rec := article.Record{Title: "Hello, World! It's here", Source: "https://www.bbc.com/news/1", PublishDate: "2023-12-01"}
	if got := BaseName(rec, now); got != "2023-12-01_bbc_hello_world_it_s_here" {
		t.Fatalf("base = %q", got)
	}
	rec.PublishDate = article.UnknownDate
	rec.Title = strings.Repeat("x", 80)
	got := BaseName(rec, now)
	if !strings.HasPrefix(got, "2024-03-05_bbc_") || len(got) != len("2024-03-05_bbc_")+50 {
		t.Fatalf("base = %q", got)
	}
}

func TestReservePath_AppendsCounter(t *testing.T) {
	dir := t.TempDir()
	var got []string
	for i := 0; i < 3; i++ {
		p, err := ReservePath(dir, "2024-03-05_bbc_hi", ".mp3", nil)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, filepath.Base(p))
	}
	want := []string{"2024-03-05_bbc_hi.mp3", "2024-03-05_bbc_hi_1.mp3", "2024-03-05_bbc_hi_2.mp3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v", got)
		}
	}
}

func TestReservePath_Truncates(t *testing.T) {
	stem := strings.Repeat("a", 300)
	p, err := ReservePath(t.TempDir(), stem, ".mp3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(filepath.Base(p)); n != 255 {
		t.Fatalf("len = %d", n)
	}
}

func TestReservePath_SkipsNamesTakenElsewhere(t *testing.T) {
	dir := t.TempDir()
	published := map[string]bool{"hi.mp3": true, "hi_1.mp3": true}
	taken := func(name string) (bool, error) { return published[name], nil }
	p, err := ReservePath(dir, "hi", ".mp3", taken)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "hi_2.mp3" {
		t.Fatalf("path = %s", p)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("skipped placeholders left behind: %d entries", len(entries))
	}
}

func TestReservePath_TakenError(t *testing.T) {
	dir := t.TempDir()
	_, err := ReservePath(dir, "hi", ".mp3", func(string) (bool, error) { return false, errors.New("bucket unreachable") })
	if err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("placeholder left behind: %d entries", len(entries))
	}
}
