// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// PublicBaseURL, when set, prefixes returned references instead of gs://.
	// Use https://storage.googleapis.com/<bucket> for public buckets.
	PublicBaseURL string
}

// BlobStore writes headshots to a configured GCS bucket.
type BlobStore struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// Ping checks that the bucket exists and is reachable with the client's credentials.
func (s *BlobStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("get bucket %q attributes: %w", s.bucket, err)
	}
	return nil
}

// PutObject uploads data to the configured bucket and returns its reference.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	path = strings.TrimLeft(path, "/")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = "public, max-age=300"
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + path, nil
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
