package profile

import (
	"context"
	"io"
)

// DocumentFetcher turns a profile page URL into markdown-like text.
type DocumentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// ImageFetcher downloads an image using browser-like request headers.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL, referer string) (Image, error)
}

// BlobStore persists a named binary object and returns a retrievable reference.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// HeadshotStore normalizes a raw headshot and stores it under a key derived from slug.
type HeadshotStore interface {
	NormalizeHeadshot(ctx context.Context, buf []byte, slug string) (string, error)
}
