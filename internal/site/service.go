package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/zdub15/agent-website-generator/internal/logging"
	"github.com/zdub15/agent-website-generator/internal/metrics"
	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Deps are the collaborators of a Service. Generator and Publisher are optional.
type Deps struct {
	Store     Store
	Profiles  ProfileResolver
	Generator ContentGenerator
	Fallback  func(profile.AgentProfile) GeneratedContent
	Headshots profile.HeadshotStore
	Renderer  Renderer
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
	Logger    *zap.Logger
}

// Service implements the site lifecycle on top of a Store.
type Service struct {
	store     Store
	profiles  ProfileResolver
	generator ContentGenerator
	fallback  func(profile.AgentProfile) GeneratedContent
	headshots profile.HeadshotStore
	renderer  Renderer
	publisher Publisher
	ids       IDGenerator
	clock     Clock
	logger    *zap.Logger
}

// NewService validates deps and returns a Service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("site store is required")
	case d.Profiles == nil:
		return nil, errors.New("profile resolver is required")
	case d.Fallback == nil:
		return nil, errors.New("fallback content is required")
	case d.Headshots == nil:
		return nil, errors.New("headshot store is required")
	case d.Renderer == nil:
		return nil, errors.New("renderer is required")
	case d.IDs == nil:
		return nil, errors.New("id generator is required")
	case d.Clock == nil:
		return nil, errors.New("clock is required")
	}
	return &Service{
		store:     d.Store,
		profiles:  d.Profiles,
		generator: d.Generator,
		fallback:  d.Fallback,
		headshots: d.Headshots,
		renderer:  d.Renderer,
		publisher: d.Publisher,
		ids:       d.IDs,
		clock:     d.Clock,
		logger:    logging.OrNop(d.Logger).Named("site"),
	}, nil
}

// CreateSite scrapes profileURL and stores a new DRAFT site for it.
func (s *Service) CreateSite(ctx context.Context, profileURL string) (Site, error) {
	p, err := s.profiles.ResolveAgentProfile(ctx, profileURL)
	if err != nil {
		return Site{}, fmt.Errorf("resolve profile: %w", err)
	}
	slug, err := UniqueSlug(ctx, s.store, p.Name)
	if err != nil {
		return Site{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return Site{}, fmt.Errorf("generate site id: %w", err)
	}
	now := s.clock.Now()
	site := Site{
		ID:            id,
		Slug:          slug,
		Status:        StatusDraft,
		SourceURL:     p.SourceURL,
		ScrapedData:   p,
		Customization: DefaultCustomization(),
		HeadshotURL:   p.HeadshotURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, site); err != nil {
		return Site{}, fmt.Errorf("create site: %w", err)
	}
	s.logger.Info("site created",
		zap.String("site_id", id),
		zap.String("slug", slug),
		zap.Bool("has_headshot", site.HeadshotURL != ""))
	s.publish(ctx, EventCreated, site)
	return site, nil
}

// GenerateContent writes marketing copy for the site and moves it to PREVIEW.
// Generator failures fall back to the default bundle.
func (s *Service) GenerateContent(ctx context.Context, id string) (Site, error) {
	site, err := s.store.Get(ctx, id)
	if err != nil {
		return Site{}, err
	}
	site.Status = StatusGenerating
	site.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, site); err != nil {
		return Site{}, fmt.Errorf("mark generating: %w", err)
	}

	content := s.generate(ctx, site)
	site.GeneratedContent = &content
	site.Status = StatusPreview
	site.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, site); err != nil {
		return Site{}, fmt.Errorf("store content: %w", err)
	}
	s.publish(ctx, EventGenerated, site)
	return site, nil
}

func (s *Service) generate(ctx context.Context, site Site) GeneratedContent {
	if s.generator == nil {
		metrics.ObserveContentGeneration(metrics.OutcomeFallback)
		return s.fallback(site.ScrapedData)
	}
	content, err := s.generator.Generate(ctx, site.ScrapedData)
	if err != nil {
		s.logger.Warn("content generation failed, using defaults",
			zap.String("site_id", site.ID),
			zap.Error(err))
		metrics.ObserveContentGeneration(metrics.OutcomeFallback)
		return s.fallback(site.ScrapedData)
	}
	metrics.ObserveContentGeneration(metrics.OutcomeSuccess)
	return content
}

// UpdateSite applies a partial update.
func (s *Service) UpdateSite(ctx context.Context, id string, patch Patch) (Site, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return Site{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, *patch.Status)
	}
	site, err := s.store.Get(ctx, id)
	if err != nil {
		return Site{}, err
	}
	site = patch.Apply(site)
	site.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, site); err != nil {
		return Site{}, fmt.Errorf("update site: %w", err)
	}
	return site, nil
}

// DeleteSite removes the site.
func (s *Service) DeleteSite(ctx context.Context, id string) error {
	site, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	s.publish(ctx, EventDeleted, site)
	return nil
}

// GetSite returns the site with id.
func (s *Service) GetSite(ctx context.Context, id string) (Site, error) {
	return s.store.Get(ctx, id)
}

// GetSiteBySlug returns the site published at slug.
func (s *Service) GetSiteBySlug(ctx context.Context, slug string) (Site, error) {
	return s.store.GetBySlug(ctx, slug)
}

// ListSites returns every site, newest first.
func (s *Service) ListSites(ctx context.Context) ([]Site, error) {
	return s.store.List(ctx)
}

// UploadHeadshot normalizes buf, stores it and points the site at it.
func (s *Service) UploadHeadshot(ctx context.Context, id string, buf []byte) (Site, error) {
	site, err := s.store.Get(ctx, id)
	if err != nil {
		return Site{}, err
	}
	ref, err := s.headshots.NormalizeHeadshot(ctx, buf, site.Slug)
	if errors.Is(err, profile.ErrInvalidImage) {
		return Site{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return Site{}, fmt.Errorf("upload headshot: %w", err)
	}
	site.HeadshotURL = ref
	site.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, site); err != nil {
		return Site{}, fmt.Errorf("update site: %w", err)
	}
	s.logger.Info("headshot uploaded", zap.String("site_id", id), zap.String("headshot", ref))
	return site, nil
}

// ExportSite renders the standalone HTML file and returns it with its filename.
func (s *Service) ExportSite(ctx context.Context, id string) ([]byte, string, error) {
	site, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, s.Page(site)); err != nil {
		return nil, "", fmt.Errorf("render site: %w", err)
	}
	return buf.Bytes(), ExportFilename(site.Slug), nil
}

// RenderSite writes the live page for slug to w.
func (s *Service) RenderSite(ctx context.Context, slug string, w io.Writer) error {
	site, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.renderer.Render(w, s.Page(site)); err != nil {
		return fmt.Errorf("render site: %w", err)
	}
	return nil
}

// Page resolves the content, theme and stats shown for site.
func (s *Service) Page(site Site) Page {
	content := s.fallback(site.ScrapedData)
	if site.GeneratedContent != nil {
		content = site.GeneratedContent.Clone()
	}
	custom := site.Customization.WithDefaults()
	stats := content.Stats
	if custom.Stats != nil {
		stats = *custom.Stats
	}
	headshot := site.HeadshotURL
	if headshot == "" {
		headshot = site.ScrapedData.HeadshotURL
	}
	return Page{
		Site:          site,
		Profile:       site.ScrapedData,
		Content:       content,
		Customization: custom,
		Stats:         stats,
		HeadshotURL:   headshot,
		CalendlyURL:   site.CalendlyURL,
	}
}

// ExportFilename is the download name of an exported site.
func ExportFilename(slug string) string {
	return slug + "-website.html"
}

func (s *Service) publish(ctx context.Context, eventType string, site Site) {
	if s.publisher == nil {
		return
	}
	ev := Event{
		Type:   eventType,
		SiteID: site.ID,
		Slug:   site.Slug,
		Status: site.Status,
		At:     s.clock.Now(),
	}
	if _, err := s.publisher.Publish(ctx, eventType, ev); err != nil {
		s.logger.Warn("publish site event failed",
			zap.String("event", eventType),
			zap.String("site_id", site.ID),
			zap.Error(err))
	}
}
