package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Patch("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Patch("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	for _, path := range []string{"/test", "/missing"} {
		req, err := http.NewRequest(http.MethodPatch, ts.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	assert.InDelta(t, 1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PATCH", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("PATCH", "404")), 0)
	assert.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
