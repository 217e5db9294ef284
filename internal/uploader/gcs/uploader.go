// Package gcs uploads finished run artifacts to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to address the bucket.
type Config struct {
	Bucket string
	Prefix string
}

// Uploader writes artifact files to a configured GCS bucket.
type Uploader struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed artifact uploader.
func New(client *storage.Client, cfg Config) (*Uploader, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Uploader{client: client, cfg: cfg}, nil
}

// Upload copies each local file into the bucket under the configured
// prefix and returns the resulting gs:// URIs. The first failure aborts
// the remaining uploads.
func (u *Uploader) Upload(ctx context.Context, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, path := range paths {
		uri, err := u.uploadOne(ctx, path)
		if err != nil {
			return uris, fmt.Errorf("upload %s: %w", path, err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (u *Uploader) uploadOne(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	object := filepath.Base(path)
	if u.cfg.Prefix != "" {
		object = u.cfg.Prefix + "/" + object
	}
	writer := u.client.Bucket(u.cfg.Bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(writer, f); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.cfg.Bucket, object), nil
}
