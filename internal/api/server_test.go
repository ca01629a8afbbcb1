package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/content"
	"github.com/zdub15/agent-website-generator/internal/export"
	"github.com/zdub15/agent-website-generator/internal/hash/sha256"
	"github.com/zdub15/agent-website-generator/internal/profile"
	pubmemory "github.com/zdub15/agent-website-generator/internal/publisher/memory"
	"github.com/zdub15/agent-website-generator/internal/scrape"
	"github.com/zdub15/agent-website-generator/internal/site"
	"github.com/zdub15/agent-website-generator/internal/storage/memory"
)

type fakeProfiles struct {
	err error
}

func (f fakeProfiles) ResolveAgentProfile(_ context.Context, rawURL string) (profile.AgentProfile, error) {
	if f.err != nil {
		return profile.AgentProfile{}, f.err
	}
	if _, err := profile.NormalizeURL(rawURL, nil); err != nil {
		return profile.AgentProfile{}, err
	}
	return profile.AgentProfile{
		Name:      "Jane Smith",
		Phone:     "(555) 123-4567",
		Email:     "jane@example.com",
		Bio:       profile.FallbackBio,
		Products:  []string{"Health"},
		SourceURL: rawURL,
	}, nil
}

type fakeHeadshots struct{}

func (fakeHeadshots) NormalizeHeadshot(_ context.Context, buf []byte, slug string) (string, error) {
	if !bytes.HasPrefix(buf, []byte("\x89PNG")) {
		return "", fmt.Errorf("%w: unsupported format", profile.ErrInvalidImage)
	}
	return "/uploads/" + slug + "-headshot.jpg", nil
}

type fakeIDGen struct {
	mu sync.Mutex
	n  int
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("site-%d", f.n), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	server *Server
	events *pubmemory.Publisher
}

func newTestEnv(t *testing.T, profiles site.ProfileResolver, opts Options) testEnv {
	t.Helper()
	renderer, err := export.NewRenderer(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	require.NoError(t, err)
	events := pubmemory.New(nil)
	svc, err := site.NewService(site.Deps{
		Store:     memory.NewSiteStore(),
		Profiles:  profiles,
		Fallback:  content.Default,
		Headshots: fakeHeadshots{},
		Renderer:  renderer,
		Publisher: events,
		IDs:       &fakeIDGen{},
		Clock:     &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return testEnv{server: NewServer(svc, profiles, sha256.New(), opts, nil), events: events}
}

func (e testEnv) do(t *testing.T, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e testEnv) createSite(t *testing.T) site.Site {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sites", []byte(`{"profileUrl":"https://www.ushagent.com/JANESMITH"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created site.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	notReady := newTestEnv(t, fakeProfiles{}, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rec := notReady.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Scrape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		profiles fakeProfiles
		body     string
		want     int
	}{
		{name: "ok", body: `{"profileUrl":"www.ushagent.com/JANESMITH"}`, want: http.StatusOK},
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "missing url", body: `{}`, want: http.StatusBadRequest},
		{name: "foreign host", body: `{"profileUrl":"https://example.com/x"}`, want: http.StatusBadRequest},
		{
			name:     "upstream failure",
			profiles: fakeProfiles{err: fmt.Errorf("%w: reader status 503", scrape.ErrFetch)},
			body:     `{"profileUrl":"https://www.ushagent.com/JANESMITH"}`,
			want:     http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, tt.profiles, Options{})
			rec := env.do(t, http.MethodPost, "/v1/scrape", []byte(tt.body), nil)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want == http.StatusOK {
				var p profile.AgentProfile
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
				assert.Equal(t, "Jane Smith", p.Name)
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestServer_SiteLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{})
	created := env.createSite(t)
	assert.Equal(t, "jane-smith", created.Slug)
	assert.Equal(t, site.StatusDraft, created.Status)

	rec := env.do(t, http.MethodGet, "/v1/sites", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []site.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	rec = env.do(t, http.MethodPost, "/v1/sites/"+created.ID+"/generate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var generated site.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &generated))
	assert.Equal(t, site.StatusPreview, generated.Status)
	require.NotNil(t, generated.GeneratedContent)

	rec = env.do(t, http.MethodPatch, "/v1/sites/"+created.ID,
		[]byte(`{"calendlyUrl":"https://calendly.com/jane","customization":{"primaryColor":"#112233"}}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched site.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "https://calendly.com/jane", patched.CalendlyURL)
	assert.Equal(t, "#112233", patched.Customization.PrimaryColor)

	rec = env.do(t, http.MethodGet, "/sites/jane-smith", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "https://calendly.com/jane")

	rec = env.do(t, http.MethodDelete, "/v1/sites/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/sites/"+created.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var topics []string
	for _, m := range env.events.Messages() {
		topics = append(topics, m.Topic)
	}
	assert.Equal(t, []string{site.EventCreated, site.EventGenerated, site.EventDeleted}, topics)
}

func TestServer_SiteErrors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{})
	created := env.createSite(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "unknown site", method: http.MethodGet, path: "/v1/sites/missing", want: http.StatusNotFound},
		{name: "unknown slug", method: http.MethodGet, path: "/sites/nobody", want: http.StatusNotFound},
		{name: "generate unknown", method: http.MethodPost, path: "/v1/sites/missing/generate", want: http.StatusNotFound},
		{name: "bad patch json", method: http.MethodPatch, path: "/v1/sites/" + created.ID, body: "{", want: http.StatusBadRequest},
		{name: "bad status", method: http.MethodPatch, path: "/v1/sites/" + created.ID, body: `{"status":"LIVE"}`, want: http.StatusBadRequest},
		{name: "create invalid url", method: http.MethodPost, path: "/v1/sites", body: `{"profileUrl":"https://example.com"}`, want: http.StatusBadRequest},
		{name: "export unknown", method: http.MethodGet, path: "/v1/sites/missing/export", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, []byte(tt.body), nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_ExportSetsDownloadHeaders(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{})
	created := env.createSite(t)

	rec := env.do(t, http.MethodGet, "/v1/sites/"+created.ID+"/export", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="jane-smith-website.html"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, sha256.New().ETag(rec.Body.Bytes()), rec.Header().Get("ETag"))
	assert.Contains(t, rec.Body.String(), "Jane Smith")

	again := env.do(t, http.MethodGet, "/v1/sites/"+created.ID+"/export", nil,
		map[string]string{"If-None-Match": rec.Header().Get("ETag")})
	assert.Equal(t, http.StatusNotModified, again.Code)
	assert.Empty(t, again.Body.Bytes())
}

func multipartBody(t *testing.T, field string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "headshot.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestServer_UploadHeadshot(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{MaxUploadBytes: 1024})
	created := env.createSite(t)
	path := "/v1/sites/" + created.ID + "/headshot"

	body, contentType := multipartBody(t, "file", []byte("\x89PNG\r\n\x1a\nrest"))
	rec := env.do(t, http.MethodPost, path, body, map[string]string{"Content-Type": contentType})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated site.Site
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "/uploads/jane-smith-headshot.jpg", updated.HeadshotURL)

	tests := []struct {
		name  string
		field string
		data  []byte
		want  int
	}{
		{name: "not an image", field: "file", data: []byte("hello"), want: http.StatusBadRequest},
		{name: "wrong field", field: "photo", data: []byte("\x89PNG"), want: http.StatusBadRequest},
		{name: "too large", field: "file", data: bytes.Repeat([]byte("x"), 4096), want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.field, tt.data)
			rec := env.do(t, http.MethodPost, path, body, map[string]string{"Content-Type": contentType})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{APIKey: "secret"})

	rec := env.do(t, http.MethodGet, "/v1/sites", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/sites", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/sites?api_key=secret", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health checks stay open")
}

func TestServer_ServesStaticUploads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "jane-smith-headshot.jpg"), []byte("jpeg"), 0o600))

	env := newTestEnv(t, fakeProfiles{}, Options{StaticDir: dir, StaticPrefix: "uploads"})
	rec := env.do(t, http.MethodGet, "/uploads/jane-smith-headshot.jpg", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fakeProfiles{}, Options{})
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("resolve profile: %w", profile.ErrInvalidURL), want: http.StatusBadRequest},
		{err: site.ErrBadRequest, want: http.StatusBadRequest},
		{err: site.ErrNotFound, want: http.StatusNotFound},
		{err: site.ErrSlugTaken, want: http.StatusConflict},
		{err: fmt.Errorf("resolve profile: %w", scrape.ErrFetch), want: http.StatusBadGateway},
		{err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
