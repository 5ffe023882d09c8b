package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hyperifyio/speakloud/internal/article"
)

const (
	maxFilenameBytes = 255
	maxSourceLen     = 20
	maxTitleLen      = 50
)

var unsafeRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func sanitizeTitle(s string) string {
	s = strings.Trim(unsafeRun.ReplaceAllString(s, "_"), "_")
	if len(s) > maxTitleLen {
		s = s[:maxTitleLen]
	}
	return s
}

// BaseName derives the lowercase file stem for rec:
// <publish date>_<source>_<title>. An unknown publish date is replaced by
// the processing date.
func BaseName(rec article.Record, now time.Time) string {
	date := strings.TrimSpace(rec.PublishDate)
	if date == "" || date == article.UnknownDate {
		date = now.Format("2006-01-02")
	}
	source := article.HumanSource(rec.Source)
	if len(source) > maxSourceLen {
		source = source[:maxSourceLen]
	}
	title := sanitizeTitle(rec.Title)
	if title == "" {
		title = "title_unknown"
	}
	return strings.ToLower(fmt.Sprintf("%s_%s_%s", date, source, title))
}

func truncateName(stem, ext string) string {
	if len(stem)+len(ext) > maxFilenameBytes {
		stem = stem[:maxFilenameBytes-len(ext)]
	}
	return stem + ext
}

// ReservePath creates an empty file named after stem in dir and returns its
// path. When the name is taken a _1, _2... suffix is tried until one is free.
// Creation is exclusive so concurrent runs never share a file. A non-nil
// taken reports names already used elsewhere, such as the upload target,
// and those are skipped too.
func ReservePath(dir, stem, ext string, taken func(name string) (bool, error)) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}
	name := truncateName(stem, ext)
	for counter := 1; ; counter++ {
		p := filepath.Join(dir, name)
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		switch {
		case err == nil:
			f.Close()
			if taken == nil {
				return p, nil
			}
			used, terr := taken(name)
			if terr != nil {
				os.Remove(p)
				return "", fmt.Errorf("check %s: %w", name, terr)
			}
			if !used {
				return p, nil
			}
			os.Remove(p)
		case !errors.Is(err, os.ErrExist):
			return "", err
		}
		suffix := fmt.Sprintf("_%d", counter)
		name = truncateName(stem, suffix+ext)
	}
}
