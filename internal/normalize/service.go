package normalize

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// ContentType is the MIME type of every normalized headshot.
const ContentType = "image/jpeg"

// Service normalizes headshots and writes them to a blob store.
type Service struct {
	normalizer Normalizer
	blobs      profile.BlobStore
	prefix     string
	logger     *zap.Logger
}

// NewService wires a Normalizer to blobs. Objects are written under prefix.
func NewService(n Normalizer, blobs profile.BlobStore, prefix string, logger *zap.Logger) (*Service, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Service{
		normalizer: n,
		blobs:      blobs,
		prefix:     strings.Trim(prefix, "/"),
		logger:     logging.OrNop(logger).Named("normalize"),
	}, nil
}

// ObjectPath returns the storage key for slug's headshot.
func (s *Service) ObjectPath(slug string) string {
	name := profile.Slugify(slug)
	if name == "" {
		name = "agent"
	}
	return path.Join(s.prefix, name+"-headshot.jpg")
}

// NormalizeHeadshot converts buf into the canonical portrait and stores it,
// returning the blob store's reference.
func (s *Service) NormalizeHeadshot(ctx context.Context, buf []byte, slug string) (string, error) {
	out, err := s.normalizer.Normalize(buf)
	if err != nil {
		return "", fmt.Errorf("normalize headshot: %w", err)
	}
	key := s.ObjectPath(slug)
	ref, err := s.blobs.PutObject(ctx, key, ContentType, bytes.NewReader(out))
	if err != nil {
		return "", fmt.Errorf("store headshot: %w", err)
	}
	s.logger.Info("headshot stored",
		zap.String("path", key),
		zap.Int("input_bytes", len(buf)),
		zap.Int("output_bytes", len(out)))
	return ref, nil
}
