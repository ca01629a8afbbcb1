package site

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Sentinel errors returned by stores and the service.
var (
	ErrNotFound   = errors.New("site not found")
	ErrSlugTaken  = errors.New("slug already in use")
	ErrBadRequest = errors.New("invalid site request")
)

// Store persists site records.
type Store interface {
	Create(ctx context.Context, s Site) error
	Get(ctx context.Context, id string) (Site, error)
	GetBySlug(ctx context.Context, slug string) (Site, error)
	Update(ctx context.Context, s Site) error
	Delete(ctx context.Context, id string) error
	// List returns all sites ordered newest first.
	List(ctx context.Context) ([]Site, error)
}

// ProfileResolver scrapes an agent profile page.
type ProfileResolver interface {
	ResolveAgentProfile(ctx context.Context, profileURL string) (profile.AgentProfile, error)
}

// ContentGenerator writes marketing copy for a profile.
type ContentGenerator interface {
	Generate(ctx context.Context, p profile.AgentProfile) (GeneratedContent, error)
}

// Renderer draws a full HTML page.
type Renderer interface {
	Render(w io.Writer, page Page) error
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator mints site IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}
