package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/fetcher/headless"
	imagefetcher "github.com/zdub15/agent-website-generator/internal/fetcher/image"
	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Strategy names, also used as metric labels.
const (
	NameDirect     = "direct"
	NameBrowser    = "browser"
	NameServerless = "serverless"
	NameManual     = "manual"
)

// Direct downloads the ranker's candidate URL.
type Direct struct {
	images profile.ImageFetcher
}

// NewDirect builds the direct download strategy.
func NewDirect(images profile.ImageFetcher) *Direct {
	return &Direct{images: images}
}

// Name implements Strategy.
func (d *Direct) Name() string { return NameDirect }

// Attempt implements Strategy.
func (d *Direct) Attempt(ctx context.Context, req Request) (profile.Image, error) {
	if req.CandidateURL == "" {
		return profile.Image{}, fmt.Errorf("%w: no candidate url", ErrNoResult)
	}
	img, err := d.images.FetchImage(ctx, req.CandidateURL, req.PageURL)
	if err != nil {
		return profile.Image{}, fmt.Errorf("%w: %w", ErrNoResult, err)
	}
	return img, nil
}

// PhotoFinder locates the photo element on a rendered page.
type PhotoFinder interface {
	FindPhoto(ctx context.Context, pageURL string) (headless.Photo, error)
}

// Browser renders the profile page and lifts the photo out of the DOM.
// The same type backs the full and serverless tiers.
type Browser struct {
	name      string
	finder    PhotoFinder
	images    profile.ImageFetcher
	available bool
}

// NewBrowser builds the full browser tier. It is unavailable when running
// in a serverless environment.
func NewBrowser(finder PhotoFinder, images profile.ImageFetcher, serverless bool) *Browser {
	return &Browser{name: NameBrowser, finder: finder, images: images, available: !serverless && finder != nil}
}

// NewServerless builds the minimal browser tier. finder is expected to
// provision its own browser binary.
func NewServerless(finder PhotoFinder, images profile.ImageFetcher) *Browser {
	return &Browser{name: NameServerless, finder: finder, images: images, available: finder != nil}
}

// Name implements Strategy.
func (b *Browser) Name() string { return b.name }

// Available reports whether the tier can run here.
func (b *Browser) Available() bool { return b.available }

// Attempt implements Strategy.
func (b *Browser) Attempt(ctx context.Context, req Request) (profile.Image, error) {
	if !b.available {
		return profile.Image{}, fmt.Errorf("%w: %s tier unavailable", ErrNoResult, b.name)
	}
	photo, err := b.finder.FindPhoto(ctx, req.PageURL)
	switch {
	case errors.Is(err, headless.ErrNoPhoto), errors.Is(err, headless.ErrProvision):
		return profile.Image{}, fmt.Errorf("%w: %w", ErrNoResult, err)
	case err != nil:
		return profile.Image{}, err
	}
	if photo.Inline() {
		img, err := imagefetcher.DecodeDataURL(photo.Src)
		if err != nil {
			return profile.Image{}, fmt.Errorf("%w: %w", ErrNoResult, err)
		}
		return img, nil
	}
	img, err := b.images.FetchImage(ctx, photo.Src, req.PageURL)
	if err != nil {
		return profile.Image{}, fmt.Errorf("%w: %w", ErrNoResult, err)
	}
	return img, nil
}

// Manual is the terminal tier: it records that a human has to upload a photo.
type Manual struct {
	logger *zap.Logger
}

// NewManual builds the manual tier.
func NewManual(logger *zap.Logger) *Manual {
	return &Manual{logger: logging.OrNop(logger).Named("resolver")}
}

// Name implements Strategy.
func (m *Manual) Name() string { return NameManual }

// Attempt implements Strategy. It never produces an image.
func (m *Manual) Attempt(_ context.Context, req Request) (profile.Image, error) {
	m.logger.Info("manual headshot upload required", zap.String("url", req.PageURL), zap.String("slug", req.Slug))
	return profile.Image{}, ErrNoResult
}
