// Package api exposes the HTTP interface for the website generator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/metrics"
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/scrape"
	"github.com/zdub15/agent-website-generator/internal/site"
)

// DefaultMaxUploadBytes caps headshot uploads.
const DefaultMaxUploadBytes = 10 << 20

// Sites is the site lifecycle the API drives.
type Sites interface {
	CreateSite(ctx context.Context, profileURL string) (site.Site, error)
	GenerateContent(ctx context.Context, id string) (site.Site, error)
	UpdateSite(ctx context.Context, id string, patch site.Patch) (site.Site, error)
	DeleteSite(ctx context.Context, id string) error
	GetSite(ctx context.Context, id string) (site.Site, error)
	ListSites(ctx context.Context) ([]site.Site, error)
	UploadHeadshot(ctx context.Context, id string, buf []byte) (site.Site, error)
	ExportSite(ctx context.Context, id string) ([]byte, string, error)
	RenderSite(ctx context.Context, slug string, w io.Writer) error
}

// Hasher computes entity tags for exported pages.
type Hasher interface {
	ETag(data []byte) string
}

// Options tune the server.
type Options struct {
	// APIKey, when set, is required on every /v1 request.
	APIKey         string
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// StaticDir is served under StaticPrefix when both are set.
	StaticDir    string
	StaticPrefix string
	// Ready reports downstream readiness; nil is always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the site service and scraper.
type Server struct {
	router   chi.Router
	sites    Sites
	profiles site.ProfileResolver
	hasher   Hasher
	opts     Options
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(sites Sites, profiles site.ProfileResolver, hasher Hasher, opts Options, logger *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		sites:    sites,
		profiles: profiles,
		hasher:   hasher,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/scrape", s.scrape)
		r.Route("/sites", func(r chi.Router) {
			r.Get("/", s.listSites)
			r.Post("/", s.createSite)
			r.Route("/{site_id}", func(r chi.Router) {
				r.Get("/", s.getSite)
				r.Patch("/", s.updateSite)
				r.Delete("/", s.deleteSite)
				r.Post("/generate", s.generateContent)
				r.Post("/headshot", s.uploadHeadshot)
				r.Get("/export", s.exportSite)
			})
		})
	})
	r.Get("/sites/{slug}", s.renderSite)

	if opts.StaticDir != "" && opts.StaticPrefix != "" {
		prefix := "/" + strings.Trim(opts.StaticPrefix, "/")
		r.Handle(prefix+"/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type profileRequest struct {
	ProfileURL string `json:"profileUrl"`
}

func decodeProfileRequest(r *http.Request) (string, error) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid JSON")
	}
	if strings.TrimSpace(req.ProfileURL) == "" {
		return "", errors.New("profileUrl is required")
	}
	return req.ProfileURL, nil
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	profileURL, err := decodeProfileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.profiles.ResolveAgentProfile(r.Context(), profileURL)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.sites.ListSites(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if sites == nil {
		sites = []site.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	profileURL, err := decodeProfileRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.sites.CreateSite(r.Context(), profileURL)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	got, err := s.sites.GetSite(r.Context(), chi.URLParam(r, "site_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) updateSite(w http.ResponseWriter, r *http.Request) {
	var patch site.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	updated, err := s.sites.UpdateSite(r.Context(), chi.URLParam(r, "site_id"), patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.sites.DeleteSite(r.Context(), chi.URLParam(r, "site_id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) generateContent(w http.ResponseWriter, r *http.Request) {
	generated, err := s.sites.GenerateContent(r.Context(), chi.URLParam(r, "site_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated)
}

func (s *Server) uploadHeadshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	buf, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload failed")
		return
	}
	updated, err := s.sites.UploadHeadshot(r.Context(), chi.URLParam(r, "site_id"), buf)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) exportSite(w http.ResponseWriter, r *http.Request) {
	body, filename, err := s.sites.ExportSite(r.Context(), chi.URLParam(r, "site_id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	etag := s.hasher.ETag(body)
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write export failed", zap.Error(err))
	}
}

func (s *Server) renderSite(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.sites.RenderSite(r.Context(), chi.URLParam(r, "slug"), &buf); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("write page failed", zap.Error(err))
	}
}

// fail maps a service error onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrInvalidURL), errors.Is(err, site.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, site.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, site.ErrSlugTaken):
		return http.StatusConflict
	case errors.Is(err, scrape.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
