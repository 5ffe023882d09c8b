package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local copies files into Dir and serves them under BaseURL. It backs
// development runs and tests.
type Local struct {
	Dir     string
	BaseURL string
}

func (l Local) Exists(_ context.Context, key string) (bool, error) {
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" {
		return false, fmt.Errorf("invalid key %q", key)
	}
	_, err := os.Stat(filepath.Join(l.Dir, filepath.FromSlash(clean)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, err
}

func (l Local) Upload(ctx context.Context, localPath, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	dst := filepath.Join(l.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", err
	}
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		return (&url.URL{Scheme: "file", Path: dst}).String(), nil
	}
	return base + "/" + (&url.URL{Path: clean}).EscapedPath(), nil
}
