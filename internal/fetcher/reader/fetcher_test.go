package reader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const janeMarkdown = `Title: Jane Smith

# Jane Smith
Phone: 555-123-4567

Images:
- ![Image 1](https://cdn.example.com/PersonalPic.jpg)
`

func TestFetchSendsReaderHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotHdr  http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHdr = r.Header.Clone()
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write([]byte(janeMarkdown))
	}))
	defer server.Close()

	f := New(Config{Endpoint: server.URL + "/", APIKey: "jina-key", UserAgent: "sitegen-test", Timeout: 5 * time.Second}, nil)
	doc, err := f.Fetch(context.Background(), "https://www.ushagent.com/JANESMITH")
	require.NoError(t, err)

	assert.Equal(t, janeMarkdown, doc)
	assert.Equal(t, "/https://www.ushagent.com/JANESMITH", gotPath)
	assert.Equal(t, "text/markdown", gotHdr.Get("Accept"))
	assert.Equal(t, "Bearer jina-key", gotHdr.Get("Authorization"))
	assert.Equal(t, "true", gotHdr.Get("X-With-Links-Summary"))
	assert.Equal(t, "true", gotHdr.Get("X-With-Images-Summary"))
	assert.Equal(t, "sitegen-test", gotHdr.Get("User-Agent"))
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(janeMarkdown))
	}))
	defer server.Close()

	f := New(Config{Endpoint: server.URL}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "https://www.ushagent.com/JANESMITH")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits)
}

func TestFetchOmitsAuthorizationWithoutKey(t *testing.T) {
	t.Parallel()

	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(janeMarkdown))
	}))
	defer server.Close()

	_, err := New(Config{Endpoint: server.URL}, nil).Fetch(context.Background(), "https://www.ushagent.com/X")
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "upstream failure", status: http.StatusBadGateway, body: "bad gateway"},
		{name: "empty document", status: http.StatusOK, body: "   \n", wantErr: ErrEmptyDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(Config{Endpoint: server.URL}, nil).Fetch(context.Background(), "https://www.ushagent.com/X")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(janeMarkdown))
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Endpoint: server.URL}, nil).Fetch(ctx, "https://www.ushagent.com/X")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{APIKey: "k"}, nil)
	var (
		body     []byte
		status   int
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &body, &status, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	req := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(req)
	assert.Equal(t, "Bearer k", req.Headers.Get("Authorization"))

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("doc")})
	assert.Equal(t, "doc", string(body))
	assert.Equal(t, http.StatusOK, status)

	hooks.onError(&colly.Response{StatusCode: http.StatusForbidden}, errors.New("Forbidden"))
	require.Error(t, fetchErr)
	assert.Contains(t, fetchErr.Error(), "reader status 403")
}

func TestReaderURL(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	assert.Equal(t, "https://r.jina.ai/https://www.ushagent.com/KYLENISBET", f.ReaderURL("https://www.ushagent.com/KYLENISBET"))
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback)   { s.onRequest = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }
