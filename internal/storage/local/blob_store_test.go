package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdub15/agent-website-generator/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "public")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, store.BaseDir())
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		tempDir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(tempDir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
			_ = os.Chmod(tempDir, 0o700)
		})

		_, err := local.New(local.Config{BaseDir: tempDir})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		path := "uploads/jane-headshot.jpg"
		data := []byte("jpeg bytes")
		uri, err := store.PutObject(context.Background(), path, "image/jpeg", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, path), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, path))
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "image/jpeg", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.jpg", "image/jpeg", bytes.NewReader([]byte("data")))
		assert.ErrorContains(t, err, "path traversal")
	})
}

func TestPutObjectPublicURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "site relative", base: "/", want: "/uploads/jane-headshot.jpg"},
		{name: "absolute", base: "https://cdn.example.com/static/", want: "https://cdn.example.com/static/uploads/jane-headshot.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := local.New(local.Config{BaseDir: t.TempDir(), PublicBaseURL: tt.base})
			require.NoError(t, err)
			got, err := store.PutObject(context.Background(), "uploads/jane-headshot.jpg", "image/jpeg",
				bytes.NewReader([]byte("x")))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
