// Package record converts sites to and from the column layout shared by the
// SQL stores.
package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zdub15/agent-website-generator/internal/profile"
	"github.com/zdub15/agent-website-generator/internal/site"
)

// Columns lists the site columns in scan order.
const Columns = "id, slug, status, source_url, scraped_data, generated_content, customization, " +
	"headshot_url, calendly_url, created_at, updated_at"

// Row is the flattened form of a site. JSON columns hold encoded documents;
// GeneratedContent is nil when no content has been generated.
type Row struct {
	ID               string
	Slug             string
	Status           string
	SourceURL        string
	ScrapedData      []byte
	GeneratedContent []byte
	Customization    []byte
	HeadshotURL      string
	CalendlyURL      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Encode flattens s into a Row.
func Encode(s site.Site) (Row, error) {
	scraped, err := json.Marshal(s.ScrapedData)
	if err != nil {
		return Row{}, fmt.Errorf("marshal scraped data: %w", err)
	}
	custom, err := json.Marshal(s.Customization)
	if err != nil {
		return Row{}, fmt.Errorf("marshal customization: %w", err)
	}
	var content []byte
	if s.GeneratedContent != nil {
		content, err = json.Marshal(s.GeneratedContent)
		if err != nil {
			return Row{}, fmt.Errorf("marshal generated content: %w", err)
		}
	}
	return Row{
		ID:               s.ID,
		Slug:             s.Slug,
		Status:           string(s.Status),
		SourceURL:        s.SourceURL,
		ScrapedData:      scraped,
		GeneratedContent: content,
		Customization:    custom,
		HeadshotURL:      s.HeadshotURL,
		CalendlyURL:      s.CalendlyURL,
		CreatedAt:        s.CreatedAt.UTC(),
		UpdatedAt:        s.UpdatedAt.UTC(),
	}, nil
}

// Decode rebuilds the site stored in r.
func (r Row) Decode() (site.Site, error) {
	var p profile.AgentProfile
	if err := json.Unmarshal(r.ScrapedData, &p); err != nil {
		return site.Site{}, fmt.Errorf("unmarshal scraped data: %w", err)
	}
	custom := site.DefaultCustomization()
	if len(r.Customization) > 0 {
		if err := json.Unmarshal(r.Customization, &custom); err != nil {
			return site.Site{}, fmt.Errorf("unmarshal customization: %w", err)
		}
	}
	var content *site.GeneratedContent
	if len(r.GeneratedContent) > 0 && string(r.GeneratedContent) != "null" {
		content = &site.GeneratedContent{}
		if err := json.Unmarshal(r.GeneratedContent, content); err != nil {
			return site.Site{}, fmt.Errorf("unmarshal generated content: %w", err)
		}
	}
	return site.Site{
		ID:               r.ID,
		Slug:             r.Slug,
		Status:           site.Status(r.Status),
		SourceURL:        r.SourceURL,
		ScrapedData:      p,
		GeneratedContent: content,
		Customization:    custom,
		HeadshotURL:      r.HeadshotURL,
		CalendlyURL:      r.CalendlyURL,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}, nil
}

// Dest returns scan destinations in Columns order.
func (r *Row) Dest() []any {
	return []any{
		&r.ID,
		&r.Slug,
		&r.Status,
		&r.SourceURL,
		&r.ScrapedData,
		&r.GeneratedContent,
		&r.Customization,
		&r.HeadshotURL,
		&r.CalendlyURL,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}
