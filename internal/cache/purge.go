package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes dir and everything below it, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgePagesByAge removes page entries whose SavedAt is older than maxAge.
func PurgePagesByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e PageEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
		return nil
	})
	return removed, err
}

type audioFile struct {
	path string
	mod  time.Time
	size int64
}

func listAudio(dir string) ([]audioFile, error) {
	var out []audioFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".mp3") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, audioFile{path: path, mod: info.ModTime(), size: info.Size()})
		return nil
	})
	return out, err
}

// PurgeAudioByAge removes cached segments not used within maxAge.
func PurgeAudioByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	files, err := listAudio(dir)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, f := range files {
		if now.Sub(f.mod) > maxAge {
			if os.Remove(f.path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// EnforceAudioLimit evicts least recently used segments until the cache holds
// at most maxBytes bytes and maxCount files. Zero disables a limit.
func EnforceAudioLimit(dir string, maxBytes int64, maxCount int) (int, error) {
	files, err := listAudio(dir)
	if err != nil {
		return 0, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	var total int64
	for _, f := range files {
		total += f.size
	}
	removed := 0
	for _, f := range files {
		overBytes := maxBytes > 0 && total > maxBytes
		overCount := maxCount > 0 && len(files)-removed > maxCount
		if !overBytes && !overCount {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}
