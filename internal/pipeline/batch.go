package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/speakloud/internal/article"
)

// Status is the outcome of one URL in a batch.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Report is the per-URL entry of a batch run.
type Report struct {
	URL          string `json:"url"`
	Status       Status `json:"status"`
	DownloadLink string `json:"download_link,omitempty"`
	Error        string `json:"error,omitempty"`
}

const defaultConcurrency = 4

// ProcessBatch runs Process for every URL. Failures are recorded in the
// report and never stop the other URLs. Reports keep the input order. URLs
// that only differ by fragment or tracking parameters are processed once and
// share the first one's outcome.
func (p *Pipeline) ProcessBatch(ctx context.Context, urls []string, hashtags []string, voiceName string) []Report {
	reports := make([]Report, len(urls))
	limit := p.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	first := make(map[string]int, len(urls))
	dups := make(map[int]int)
	var g errgroup.Group
	g.SetLimit(limit)
	for i, u := range urls {
		if !article.ValidURL(u) {
			log.Warn().Str("url", u).Msg("invalid URL skipped")
			reports[i] = Report{URL: u, Status: StatusFailed, Error: "Invalid URL"}
			continue
		}
		key := article.CanonicalURL(u)
		if j, ok := first[key]; ok {
			log.Debug().Str("url", u).Str("same_as", urls[j]).Msg("duplicate URL in batch")
			dups[i] = j
			continue
		}
		first[key] = i
		i, u := i, u
		g.Go(func() error {
			res, err := p.Process(ctx, u, hashtags, voiceName)
			if err != nil {
				reports[i] = Report{URL: u, Status: StatusFailed, Error: failureReason(err)}
				return nil
			}
			reports[i] = Report{URL: u, Status: StatusSuccess, DownloadLink: res.DownloadLink}
			return nil
		})
	}
	_ = g.Wait()
	for i, j := range dups {
		reports[i] = reports[j]
		reports[i].URL = urls[i]
	}
	return reports
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "Invalid URL"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}

// Failed counts the failed entries of reports.
func Failed(reports []Report) int {
	n := 0
	for _, r := range reports {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}
