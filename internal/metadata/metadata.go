// Package metadata persists one record per narrated article and the listen
// events logged against it.
package metadata

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no article has the requested ID.
var ErrNotFound = errors.New("article not found")

// DateLayout is the format of PublishDate and ProcessedDate.
const DateLayout = "2006-01-02"

// Article is the persisted form of a narrated article.
type Article struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	URL            string    `json:"url"`
	PublishDate    string    `json:"publish_date"`
	ProcessedDate  string    `json:"processed_date"`
	DownloadLink   string    `json:"download_link"`
	Authors        []string  `json:"authors"`
	TextContent    string    `json:"text_content"`
	Hashtags       []string  `json:"hashtags"`
	VoiceName      string    `json:"voice_name,omitempty"`
	AudioLength    *float64  `json:"audio_length,omitempty"`
	TranscriptLink string    `json:"transcript_link,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	Title          *string
	DownloadLink   *string
	TranscriptLink *string
	VoiceName      *string
	Hashtags       []string
	AudioLength    *float64
}

// Store is implemented by MemoryStore and PostgresStore.
type Store interface {
	// Save assigns an ID and processed date when missing and returns the ID.
	Save(ctx context.Context, a *Article) (string, error)
	// FindByURL returns (nil, nil) when no article has that source URL.
	FindByURL(ctx context.Context, url string) (*Article, error)
	Get(ctx context.Context, id string) (*Article, error)
	Update(ctx context.Context, id string, p Patch) error
	// List returns up to limit articles, most recently processed first.
	List(ctx context.Context, limit int) ([]Article, error)
	ListByHashtag(ctx context.Context, tag string) ([]Article, error)
	Delete(ctx context.Context, id string) error
	LogListen(ctx context.Context, id string) error
	ListenCount(ctx context.Context, id string) (int, error)
	Ping(ctx context.Context) error
}

// RoundSeconds rounds an audio duration to two decimals for storage.
func RoundSeconds(s float64) float64 {
	return math.Round(s*100) / 100
}

// NormalizeHashtags trims, strips a leading '#', lowercases and dedupes tags.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// prepare fills in generated fields before a save.
func prepare(a *Article, now time.Time) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ProcessedDate == "" {
		a.ProcessedDate = now.Format(DateLayout)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.Hashtags = NormalizeHashtags(a.Hashtags)
	if a.Authors == nil {
		a.Authors = []string{}
	}
}

func (p Patch) apply(a *Article) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.DownloadLink != nil {
		a.DownloadLink = *p.DownloadLink
	}
	if p.TranscriptLink != nil {
		a.TranscriptLink = *p.TranscriptLink
	}
	if p.VoiceName != nil {
		a.VoiceName = *p.VoiceName
	}
	if p.Hashtags != nil {
		a.Hashtags = NormalizeHashtags(p.Hashtags)
	}
	if p.AudioLength != nil {
		v := *p.AudioLength
		a.AudioLength = &v
	}
}
