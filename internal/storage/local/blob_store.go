// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// PublicBaseURL, when set, is the URL prefix BaseDir is served under.
	// References become PublicBaseURL/path instead of file:// URIs.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir       string
	publicBaseURL string
	public        bool
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{
		baseDir:       cfg.BaseDir,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		public:        strings.TrimSpace(cfg.PublicBaseURL) != "",
	}, nil
}

// BaseDir returns the directory blobs are written under.
func (s *BlobStore) BaseDir() string {
	return s.baseDir
}

// PutObject writes data below BaseDir and returns its public URL or file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(path))

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if s.public {
		return s.publicBaseURL + "/" + strings.TrimLeft(filepath.ToSlash(path), "/"), nil
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
