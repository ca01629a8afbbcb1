// Package reader fetches profile pages as markdown through a reader endpoint
// using gocolly.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
)

// DefaultEndpoint is the public reader service.
const DefaultEndpoint = "https://r.jina.ai/"

const defaultTimeout = 60 * time.Second

// ErrEmptyDocument is returned when the reader answers with no content.
var ErrEmptyDocument = errors.New("reader returned an empty document")

// Config controls reader requests.
type Config struct {
	Endpoint  string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements profile.DocumentFetcher on top of a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logging.OrNop(logger).Named("reader"),
	}
}

// ReaderURL is the endpoint address that renders pageURL.
func (f *Fetcher) ReaderURL(pageURL string) string {
	return strings.TrimRight(f.cfg.Endpoint, "/") + "/" + pageURL
}

// Fetch returns the markdown rendition of pageURL, including the trailing
// links and images summaries.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(&body, &status, &fetchErr)
	target := f.ReaderURL(pageURL)

	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		return "", err
	}
	doc := strings.TrimSpace(string(body))
	if doc == "" {
		return "", ErrEmptyDocument
	}
	f.logger.Debug("document fetched",
		zap.String("url", pageURL),
		zap.Int("status", status),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return string(body), nil
}

func (f *Fetcher) buildCollector(body *[]byte, status *int, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, body, status, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, body *[]byte, status *int, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		f.setHeaders(r.Headers)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*status = r.StatusCode
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("reader status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) setHeaders(h *http.Header) {
	h.Set("Accept", "text/markdown")
	h.Set("X-With-Links-Summary", "true")
	h.Set("X-With-Images-Summary", "true")
	if f.cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("reader fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("reader response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("reader visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
