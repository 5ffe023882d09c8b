// Package cache keeps fetched article pages and synthesized audio segments on
// local disk so repeated runs avoid refetching and re-synthesizing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PageEntry holds enough about a fetched page to revalidate it with a
// conditional GET and to hand the body back without another download.
type PageEntry struct {
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	SavedAt      time.Time `json:"saved_at"`
}

// PageCache stores pages as <sha256(url)>.meta.json and <sha256(url)>.body.
type PageCache struct {
	Dir string
	// StrictPerms restricts the directory to 0700 and files to 0600.
	StrictPerms bool
}

var errNoDir = errors.New("cache dir not configured")

func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errNoDir
	}
	perm := os.FileMode(0o755)
	if strict {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

func fileMode(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}

func digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *PageCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *PageCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+".body") }

// Lookup returns the cached entry and body for url. ok is false on a miss.
func (c *PageCache) Lookup(_ context.Context, url string) (entry *PageEntry, body []byte, ok bool, err error) {
	if c == nil {
		return nil, nil, false, errNoDir
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return nil, nil, false, err
	}
	key := digest(url)
	b, err := os.ReadFile(c.metaPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	var e PageEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, nil, false, fmt.Errorf("decode meta: %w", err)
	}
	body, err = os.ReadFile(c.bodyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return &e, body, true, nil
}

// Save writes the body first and then atomically replaces the metadata, so a
// reader never sees metadata that points at a missing body.
func (c *PageCache) Save(_ context.Context, e PageEntry, body []byte) error {
	if c == nil {
		return errNoDir
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	key := digest(e.URL)
	mode := fileMode(c.StrictPerms)
	if err := os.WriteFile(c.bodyPath(key), body, mode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}
