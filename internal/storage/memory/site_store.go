package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zdub15/agent-website-generator/internal/site"
)

// SiteStore provides an in-memory site.Store. Records are copied on the way
// in and out so callers never share state with the store.
type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]site.Site
	slugs map[string]string
}

// NewSiteStore constructs a SiteStore.
func NewSiteStore() *SiteStore {
	return &SiteStore{
		sites: make(map[string]site.Site),
		slugs: make(map[string]string),
	}
}

// Create stores a new site.
func (s *SiteStore) Create(_ context.Context, rec site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sites[rec.ID]; exists {
		return fmt.Errorf("site %s already exists", rec.ID)
	}
	if _, taken := s.slugs[rec.Slug]; taken {
		return fmt.Errorf("%w: %s", site.ErrSlugTaken, rec.Slug)
	}
	s.sites[rec.ID] = rec.Clone()
	s.slugs[rec.Slug] = rec.ID
	return nil
}

// Get fetches a site by ID.
func (s *SiteStore) Get(_ context.Context, id string) (site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sites[id]
	if !ok {
		return site.Site{}, site.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetBySlug fetches a site by slug.
func (s *SiteStore) GetBySlug(_ context.Context, slug string) (site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return site.Site{}, site.ErrNotFound
	}
	return s.sites[id].Clone(), nil
}

// Update replaces an existing site.
func (s *SiteStore) Update(_ context.Context, rec site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.sites[rec.ID]
	if !ok {
		return site.ErrNotFound
	}
	if prev.Slug != rec.Slug {
		if _, taken := s.slugs[rec.Slug]; taken {
			return fmt.Errorf("%w: %s", site.ErrSlugTaken, rec.Slug)
		}
		delete(s.slugs, prev.Slug)
		s.slugs[rec.Slug] = rec.ID
	}
	s.sites[rec.ID] = rec.Clone()
	return nil
}

// Delete removes a site.
func (s *SiteStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sites[id]
	if !ok {
		return site.ErrNotFound
	}
	delete(s.sites, id)
	delete(s.slugs, rec.Slug)
	return nil
}

// List returns all sites, newest first.
func (s *SiteStore) List(_ context.Context) ([]site.Site, error) {
	s.mu.RLock()
	out := make([]site.Site, 0, len(s.sites))
	for _, rec := range s.sites {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
