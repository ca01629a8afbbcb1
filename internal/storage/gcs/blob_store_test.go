package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/zdub15/agent-website-generator/internal/storage/gcs"
)

// newTestClient creates a storage client pointed at a test server.
func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL+"/storage/v1/"),
		option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	const bucket = "headshots"
	payload := []byte("jpeg-bytes")

	// This handler simulates the GCS JSON API for multipart uploads.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, fmt.Sprintf("/upload/storage/v1/b/%s/o", bucket))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		assert.Contains(t, string(body), "uploads/jane-headshot.jpg")
		assert.Contains(t, string(body), "image/jpeg")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"bucket":%q,"name":"uploads/jane-headshot.jpg"}`, bucket)
	})

	tests := []struct {
		name   string
		public string
		want   string
	}{
		{name: "gs uri", want: "gs://headshots/uploads/jane-headshot.jpg"},
		{
			name:   "public url",
			public: "https://storage.googleapis.com/headshots/",
			want:   "https://storage.googleapis.com/headshots/uploads/jane-headshot.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: bucket, PublicBaseURL: tt.public})
			require.NoError(t, err)

			ref, err := store.PutObject(context.Background(), "/uploads/jane-headshot.jpg", "image/jpeg",
				bytes.NewReader(payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref)
		})
	}
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	store, err := gcs.New(newTestClient(t, handler), gcs.Config{Bucket: "headshots"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "image/jpeg", bytes.NewReader(nil))
	require.ErrorContains(t, err, "path is required")

	_, err = store.PutObject(context.Background(), "a.jpg", "image/jpeg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/headshots")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"headshots"}`)
	})
	store, err := gcs.New(newTestClient(t, ok), gcs.Config{Bucket: "headshots"})
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	missing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	store, err = gcs.New(newTestClient(t, missing), gcs.Config{Bucket: "headshots"})
	require.NoError(t, err)
	require.Error(t, store.Ping(context.Background()))
}
