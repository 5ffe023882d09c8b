package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
)

// GCS uploads into a Google Cloud Storage bucket whose objects are publicly
// readable.
type GCS struct {
	Bucket string

	newWriter func(ctx context.Context, key, contentType string) io.WriteCloser
	stat      func(ctx context.Context, key string) error
	close     func() error
}

// NewGCS creates a client with application default credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("GCS bucket name is required")
	}
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	b := c.Bucket(bucket)
	return &GCS{
		Bucket: bucket,
		newWriter: func(ctx context.Context, key, contentType string) io.WriteCloser {
			w := b.Object(key).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
		stat: func(ctx context.Context, key string) error {
			_, err := b.Object(key).Attrs(ctx)
			return err
		},
		close: c.Close,
	}, nil
}

// Close releases the client.
func (g *GCS) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// PublicURL is the browser-facing address of key.
func (g *GCS) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.Bucket, (&url.URL{Path: key}).EscapedPath())
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	err := g.stat(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gcs.ErrObjectNotExist):
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

func (g *GCS) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Cancelling ctx aborts the write and discards the partial object.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := g.newWriter(ctx, key, contentType(key))
	if _, err := io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}
	log.Info().Str("bucket", g.Bucket).Str("key", key).Msg("uploaded")
	return g.PublicURL(key), nil
}
