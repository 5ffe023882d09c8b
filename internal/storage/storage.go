// Package storage publishes finished narration files and returns the URL
// listeners download them from.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/hyperifyio/speakloud/internal/retry"
)

// Uploader copies a local file to key and returns its public URL. Exists
// reports whether key is already published, so callers can pick a free name.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadError is returned when an upload failed after every retry.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Retrying retries Inner under Policy and reports exhaustion as *UploadError.
type Retrying struct {
	Inner  Uploader
	Policy retry.Policy
}

func (r Retrying) Upload(ctx context.Context, localPath, key string) (string, error) {
	u, err := retry.Value(ctx, r.Policy, "upload "+key, func(ctx context.Context, _ int) (string, error) {
		return r.Inner.Upload(ctx, localPath, key)
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return u, nil
}

func (r Retrying) Exists(ctx context.Context, key string) (bool, error) {
	return retry.Value(ctx, r.Policy, "stat "+key, func(ctx context.Context, _ int) (bool, error) {
		return r.Inner.Exists(ctx, key)
	})
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
