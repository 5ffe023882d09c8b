package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// AudioCache stores synthesized MP3 segments keyed by provider, voice and text.
type AudioCache struct {
	Dir         string
	StrictPerms bool
}

// AudioKey derives the cache key for one synthesis request.
func AudioKey(provider, voice, text string) string {
	return digest(provider, voice, text)
}

func (c *AudioCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".mp3")
}

// Get returns the cached audio for key. A hit refreshes the file's mtime so
// EnforceAudioLimit evicts least recently used segments first.
func (c *AudioCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, errNoDir
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil || len(b) == 0 {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Put stores audio under key. Writes go through a temp file and rename.
func (c *AudioCache) Put(_ context.Context, key string, audio []byte) error {
	if c == nil {
		return errNoDir
	}
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	p := c.pathFor(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, audio, fileMode(c.StrictPerms)); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
