package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/site"
)

func openMemory(t *testing.T) *SiteStore {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSite(id, slug string, created time.Time) site.Site {
	return site.Site{
		ID:        id,
		Slug:      slug,
		Status:    site.StatusDraft,
		SourceURL: "https://www.ushagent.com/JANESMITH",
		ScrapedData: profile.AgentProfile{
			Name:     "Jane Smith",
			Bio:      profile.FallbackBio,
			Products: []string{"Health", "Dental"},
		},
		Customization: site.DefaultCustomization(),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestSiteStoreCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)
	now := time.Date(2026, 5, 6, 7, 8, 9, 123456000, time.UTC)

	require.NoError(t, store.Create(ctx, sampleSite("a", "jane-smith", now)))
	require.ErrorIs(t, store.Create(ctx, sampleSite("b", "jane-smith", now)), site.ErrSlugTaken)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "jane-smith", got.Slug)
	assert.Equal(t, []string{"Health", "Dental"}, got.ScrapedData.Products)
	assert.True(t, now.Equal(got.CreatedAt))
	assert.Nil(t, got.GeneratedContent)

	got.Status = site.StatusPreview
	got.GeneratedContent = &site.GeneratedContent{Headline: "Hello"}
	got.CalendlyURL = "https://calendly.com/jane"
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Update(ctx, got))

	bySlug, err := store.GetBySlug(ctx, "jane-smith")
	require.NoError(t, err)
	assert.Equal(t, site.StatusPreview, bySlug.Status)
	require.NotNil(t, bySlug.GeneratedContent)
	assert.Equal(t, "Hello", bySlug.GeneratedContent.Headline)
	assert.Equal(t, "https://calendly.com/jane", bySlug.CalendlyURL)

	require.ErrorIs(t, store.Update(ctx, sampleSite("missing", "x", now)), site.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "a"))
	require.ErrorIs(t, store.Delete(ctx, "a"), site.ErrNotFound)
	_, err = store.GetBySlug(ctx, "jane-smith")
	require.ErrorIs(t, err, site.ErrNotFound)
}

func TestSiteStoreListNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemory(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(ctx, sampleSite("old", "old", base)))
	require.NoError(t, store.Create(ctx, sampleSite("new", "new", base.Add(2*time.Hour))))
	require.NoError(t, store.Create(ctx, sampleSite("mid", "mid", base.Add(time.Hour))))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestOpenFileDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "sites.db")
	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Create(ctx, sampleSite("a", "a", time.Now().UTC())))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	_, err = reopened.Get(ctx, "a")
	require.NoError(t, err)
}
