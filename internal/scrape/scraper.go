// Package scrape assembles an AgentProfile from a profile page URL.
package scrape

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/extract"
	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/metrics"
	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/resolver"
)

// ErrFetch marks a profile document that could not be retrieved.
var ErrFetch = errors.New("fetch profile document")

// Scrape status labels.
const (
	StatusSuccess    = "success"
	StatusInvalidURL = "invalid_url"
	StatusFetchError = "fetch_error"
)

// HeadshotResolver runs the headshot cascade.
type HeadshotResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error)
}

// Config tunes profile assembly.
type Config struct {
	// AllowedHosts restricts profile URLs; nil uses profile.DefaultAllowedHosts.
	AllowedHosts []string
	// NormalizeOnScrape downloads and normalizes the ranked headshot during
	// the scrape. When false a ranked remote URL is kept as-is.
	NormalizeOnScrape bool
}

// Scraper fetches, extracts and resolves agent profiles.
type Scraper struct {
	docs      profile.DocumentFetcher
	headshots HeadshotResolver
	cfg       Config
	logger    *zap.Logger
}

// New builds a Scraper. headshots may be nil, in which case only the ranked
// URL is used.
func New(docs profile.DocumentFetcher, headshots HeadshotResolver, cfg Config, logger *zap.Logger) (*Scraper, error) {
	if docs == nil {
		return nil, errors.New("document fetcher is required")
	}
	return &Scraper{
		docs:      docs,
		headshots: headshots,
		cfg:       cfg,
		logger:    logging.OrNop(logger).Named("scrape"),
	}, nil
}

// ResolveAgentProfile builds the profile for profileURL. Only an invalid URL
// or a failed document fetch is an error; missing fields are left empty or
// filled with their fallbacks.
func (s *Scraper) ResolveAgentProfile(ctx context.Context, profileURL string) (profile.AgentProfile, error) {
	pageURL, err := profile.NormalizeURL(profileURL, s.cfg.AllowedHosts)
	if err != nil {
		metrics.ObserveScrape(StatusInvalidURL)
		return profile.AgentProfile{}, err
	}
	logger := s.logger.With(zap.String("url", pageURL))

	doc, err := s.docs.Fetch(ctx, pageURL)
	if err != nil {
		metrics.ObserveScrape(StatusFetchError)
		logger.Warn("profile fetch failed", zap.Error(err))
		return profile.AgentProfile{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	res := extract.Extract(doc, pageURL)
	p := res.Profile
	logger.Debug("profile extracted",
		zap.String("name", p.Name),
		zap.Int("candidates", len(res.Ranking.Candidates)),
		zap.String("ranked_headshot", p.HeadshotURL))

	headshot, err := s.resolveHeadshot(ctx, pageURL, p)
	if err != nil {
		return profile.AgentProfile{}, err
	}
	p = profile.Sanitize(p.WithHeadshot(headshot))

	metrics.ObserveScrape(StatusSuccess)
	logger.Info("profile resolved",
		zap.String("name", p.Name),
		zap.Bool("headshot", p.HeadshotURL != ""))
	return p, nil
}

// resolveHeadshot decides the final headshot reference. A cascade that comes
// up empty falls back to the ranked remote URL unless its download proved it
// is not a usable image.
func (s *Scraper) resolveHeadshot(ctx context.Context, pageURL string, p profile.AgentProfile) (string, error) {
	ranked := p.HeadshotURL
	if s.headshots == nil {
		return ranked, nil
	}
	if ranked != "" && !s.cfg.NormalizeOnScrape {
		return ranked, nil
	}

	req := resolver.Request{PageURL: pageURL, Slug: profile.Slugify(p.Name)}
	if s.cfg.NormalizeOnScrape {
		req.CandidateURL = ranked
	}
	res, err := s.headshots.Resolve(ctx, req)
	if err != nil {
		return "", err
	}
	if res.HeadshotURL != "" {
		return res.HeadshotURL, nil
	}
	if res.CandidateRejected {
		s.logger.Info("ranked headshot dropped", zap.String("url", ranked))
		return "", nil
	}
	return ranked, nil
}
