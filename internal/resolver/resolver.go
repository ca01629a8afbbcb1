// Package resolver escalates through headshot strategies until one yields an
// acceptable image, then normalizes and stores it.
package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	imagefetcher "github.com/zdub15/agent-website-generator/internal/fetcher/image"
	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/metrics"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// ErrNoResult is returned by a strategy that has nothing to offer.
var ErrNoResult = errors.New("no result")

// Request describes the headshot being resolved.
type Request struct {
	// PageURL is the normalized profile page.
	PageURL string
	// CandidateURL is the ranker's validated pick, if any.
	CandidateURL string
	// Slug keys the stored object.
	Slug string
}

// Strategy is one rung of the escalation ladder.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (profile.Image, error)
}

// Result reports which strategy produced the stored headshot.
// An empty HeadshotURL means every strategy came up empty.
type Result struct {
	HeadshotURL string
	Strategy    string
	// CandidateRejected reports that the candidate URL was downloaded but
	// its content was not an acceptable image.
	CandidateRejected bool
}

// Resolver runs strategies in order; the first acceptable image wins.
type Resolver struct {
	strategies []Strategy
	headshots  profile.HeadshotStore
	minBytes   int
	logger     *zap.Logger
}

// New builds a Resolver. Images shorter than minBytes are rejected.
func New(headshots profile.HeadshotStore, minBytes int, logger *zap.Logger, strategies ...Strategy) *Resolver {
	if minBytes <= 0 {
		minBytes = imagefetcher.DefaultMinBytes
	}
	return &Resolver{
		strategies: strategies,
		headshots:  headshots,
		minBytes:   minBytes,
		logger:     logging.OrNop(logger).Named("resolver"),
	}
}

// Strategies returns the configured strategy names in order.
func (r *Resolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve walks the cascade. Strategy failures are logged and skipped;
// only context cancellation is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	rejected := false
	for _, strategy := range r.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		name := strategy.Name()
		logger := r.logger.With(zap.String("strategy", name), zap.String("url", req.PageURL))

		start := time.Now()
		img, err := strategy.Attempt(ctx, req)
		elapsed := time.Since(start)
		switch {
		case errors.Is(err, ErrNoResult):
			if name == NameDirect && contentRejected(err) {
				rejected = true
			}
			logger.Debug("strategy found nothing", zap.Error(err), zap.Duration("duration", elapsed))
			metrics.ObserveHeadshotAttempt(name, metrics.OutcomeNoResult, elapsed)
			continue
		case err != nil:
			logger.Warn("strategy failed", zap.Error(err), zap.Duration("duration", elapsed))
			metrics.ObserveHeadshotAttempt(name, metrics.OutcomeError, elapsed)
			continue
		}

		if err := imagefetcher.Validate(img, r.minBytes); err != nil {
			if name == NameDirect {
				rejected = true
			}
			logger.Info("strategy image rejected", zap.Error(err), zap.Int("bytes", len(img.Data)))
			metrics.ObserveHeadshotAttempt(name, metrics.OutcomeNoResult, elapsed)
			continue
		}

		ref, err := r.headshots.NormalizeHeadshot(ctx, img.Data, req.Slug)
		if err != nil {
			logger.Warn("headshot normalization failed", zap.Error(err))
			metrics.ObserveHeadshotAttempt(name, metrics.OutcomeError, time.Since(start))
			continue
		}
		metrics.ObserveHeadshotAttempt(name, metrics.OutcomeSuccess, time.Since(start))
		logger.Info("headshot resolved",
			zap.String("headshot", ref),
			zap.String("source", img.SourceURL),
			zap.Duration("duration", time.Since(start)))
		return Result{HeadshotURL: ref, Strategy: name}, nil
	}
	r.logger.Info("headshot cascade exhausted", zap.String("url", req.PageURL), zap.Bool("candidate_rejected", rejected))
	return Result{CandidateRejected: rejected}, nil
}

func contentRejected(err error) bool {
	return errors.Is(err, imagefetcher.ErrTooSmall) ||
		errors.Is(err, imagefetcher.ErrNotImage) ||
		errors.Is(err, imagefetcher.ErrTooLarge)
}
