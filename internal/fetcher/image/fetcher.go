// Package imagefetcher downloads candidate headshots with browser-like
// headers and rejects anything that is not a real raster image.
package imagefetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultMinBytes  = 5000
	DefaultMaxBytes  = 10 << 20
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Rejection reasons for a downloaded buffer.
var (
	ErrTooSmall = errors.New("image below minimum size")
	ErrNotImage = errors.New("content is not an image")
	ErrTooLarge = errors.New("image above maximum size")
)

// Config tunes the downloader.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MinBytes  int
	// MaxBytes caps a download; larger bodies are rejected unread.
	MaxBytes int64
}

// Fetcher implements profile.ImageFetcher over resty.
type Fetcher struct {
	client   *resty.Client
	minBytes int
	maxBytes int64
	logger   *zap.Logger
}

// New builds a Fetcher whose transport carries the CDN bypass headers.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetHeader("accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	client.SetTimeout(cfg.Timeout)

	return &Fetcher{
		client:   client,
		minBytes: cfg.MinBytes,
		maxBytes: cfg.MaxBytes,
		logger:   logging.OrNop(logger).Named("image_fetcher"),
	}
}

// MinBytes is the smallest buffer the fetcher accepts.
func (f *Fetcher) MinBytes() int {
	return f.minBytes
}

// FetchImage downloads imageURL, sending referer when set. Inline data URLs
// are decoded without a request. The result is validated with Validate.
func (f *Fetcher) FetchImage(ctx context.Context, imageURL, referer string) (profile.Image, error) {
	if strings.HasPrefix(strings.ToLower(imageURL), "data:") {
		img, err := DecodeDataURL(imageURL)
		if err != nil {
			return profile.Image{}, err
		}
		return img, Validate(img, f.minBytes)
	}

	req := f.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	if referer != "" {
		req.SetHeader("referer", referer)
	}
	start := time.Now()
	res, err := req.Get(imageURL)
	if err != nil {
		return profile.Image{}, fmt.Errorf("download image: %w", err)
	}
	raw := res.RawBody()
	defer raw.Close()
	if res.IsError() {
		return profile.Image{}, fmt.Errorf("download image: status %d", res.StatusCode())
	}
	if res.RawResponse.ContentLength > f.maxBytes {
		return profile.Image{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, res.RawResponse.ContentLength, f.maxBytes)
	}
	body, err := io.ReadAll(io.LimitReader(raw, f.maxBytes+1))
	if err != nil {
		return profile.Image{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return profile.Image{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	img := profile.Image{
		Data:        body,
		ContentType: http.DetectContentType(body),
		SourceURL:   imageURL,
	}
	f.logger.Debug("image downloaded",
		zap.String("url", imageURL),
		zap.Int("bytes", len(body)),
		zap.String("content_type", img.ContentType),
		zap.Duration("duration", time.Since(start)))
	return img, Validate(img, f.minBytes)
}

// Validate accepts img when it holds at least minBytes and sniffs as image/*.
func Validate(img profile.Image, minBytes int) error {
	if len(img.Data) < minBytes {
		return fmt.Errorf("%w: %d < %d bytes", ErrTooSmall, len(img.Data), minBytes)
	}
	sniffed := http.DetectContentType(img.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return fmt.Errorf("%w: %s", ErrNotImage, sniffed)
	}
	return nil
}

// DecodeDataURL decodes a data:image/...;base64 reference.
func DecodeDataURL(raw string) (profile.Image, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		rest, ok = strings.CutPrefix(raw, "DATA:")
	}
	if !ok {
		return profile.Image{}, fmt.Errorf("%w: not a data url", ErrNotImage)
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return profile.Image{}, fmt.Errorf("%w: malformed data url", ErrNotImage)
	}
	var data []byte
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return profile.Image{}, fmt.Errorf("decode data url: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return profile.Image{}, fmt.Errorf("decode data url: %w", err)
		}
		data = []byte(unescaped)
	}
	return profile.Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		SourceURL:   "data:" + strings.TrimSuffix(meta, ";base64"),
	}, nil
}
