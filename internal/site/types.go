// Package site manages generated agent websites: their records, content,
// customization and lifecycle.
package site

import (
	"time"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Status is the lifecycle state of a site.
type Status string

// Site lifecycle states.
const (
	StatusDraft      Status = "DRAFT"
	StatusGenerating Status = "GENERATING"
	StatusPreview    Status = "PREVIEW"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusGenerating, StatusPreview:
		return true
	default:
		return false
	}
}

// Default theme values applied to new sites.
const (
	DefaultPrimaryColor   = "#003478"
	DefaultSecondaryColor = "#ffc440"
	DefaultAccentColor    = "#042b2b"
	DefaultFontFamily     = "Inter"
)

// Stats are the headline numbers shown on a site.
type Stats struct {
	FamiliesHelped   string `json:"familiesHelped"`
	SatisfactionRate string `json:"satisfactionRate"`
	CoverageIssued   string `json:"coverageIssued"`
}

// Customization holds the agent's theme choices.
type Customization struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	AccentColor    string `json:"accentColor"`
	FontFamily     string `json:"fontFamily"`
	Stats          *Stats `json:"stats,omitempty"`
}

// DefaultCustomization returns the brand theme.
func DefaultCustomization() Customization {
	return Customization{
		PrimaryColor:   DefaultPrimaryColor,
		SecondaryColor: DefaultSecondaryColor,
		AccentColor:    DefaultAccentColor,
		FontFamily:     DefaultFontFamily,
	}
}

// WithDefaults fills empty theme fields with the brand defaults.
func (c Customization) WithDefaults() Customization {
	d := DefaultCustomization()
	if c.PrimaryColor == "" {
		c.PrimaryColor = d.PrimaryColor
	}
	if c.SecondaryColor == "" {
		c.SecondaryColor = d.SecondaryColor
	}
	if c.AccentColor == "" {
		c.AccentColor = d.AccentColor
	}
	if c.FontFamily == "" {
		c.FontFamily = d.FontFamily
	}
	return c
}

// Offering is one insurance product card.
type Offering struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Benefits    []string `json:"benefits"`
}

// Testimonial is a client quote.
type Testimonial struct {
	Quote    string `json:"quote"`
	Author   string `json:"author"`
	Location string `json:"location"`
	Rating   int    `json:"rating"`
}

// ProcessStep is one step of the enrollment walkthrough.
type ProcessStep struct {
	Step        int    `json:"step"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GeneratedContent is the marketing copy for a site.
type GeneratedContent struct {
	Headline     string        `json:"headline"`
	Subheadline  string        `json:"subheadline"`
	EnhancedBio  string        `json:"enhancedBio"`
	Services     []Offering    `json:"services"`
	Testimonials []Testimonial `json:"testimonials"`
	ProcessSteps []ProcessStep `json:"processSteps"`
	Stats        Stats         `json:"stats"`
}

// Site is the durable record behind one generated website.
type Site struct {
	ID               string               `json:"id"`
	Slug             string               `json:"slug"`
	Status           Status               `json:"status"`
	SourceURL        string               `json:"sourceUrl"`
	ScrapedData      profile.AgentProfile `json:"scrapedData"`
	GeneratedContent *GeneratedContent    `json:"generatedContent,omitempty"`
	Customization    Customization        `json:"customization"`
	HeadshotURL      string               `json:"headshotUrl,omitempty"`
	CalendlyURL      string               `json:"calendlyUrl,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// Clone returns a deep copy of s.
func (s Site) Clone() Site {
	cp := s
	cp.ScrapedData = s.ScrapedData.Clone()
	if s.GeneratedContent != nil {
		gc := s.GeneratedContent.Clone()
		cp.GeneratedContent = &gc
	}
	if s.Customization.Stats != nil {
		st := *s.Customization.Stats
		cp.Customization.Stats = &st
	}
	return cp
}

// Clone returns a deep copy of c.
func (c GeneratedContent) Clone() GeneratedContent {
	cp := c
	cp.Services = make([]Offering, len(c.Services))
	for i, o := range c.Services {
		o.Benefits = append([]string(nil), o.Benefits...)
		cp.Services[i] = o
	}
	cp.Testimonials = append([]Testimonial(nil), c.Testimonials...)
	cp.ProcessSteps = append([]ProcessStep(nil), c.ProcessSteps...)
	return cp
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Customization    *Customization    `json:"customization,omitempty"`
	GeneratedContent *GeneratedContent `json:"generatedContent,omitempty"`
	Status           *Status           `json:"status,omitempty"`
	CalendlyURL      *string           `json:"calendlyUrl,omitempty"`
	HeadshotURL      *string           `json:"headshotUrl,omitempty"`
}

// Apply returns s with the patch applied.
func (p Patch) Apply(s Site) Site {
	out := s.Clone()
	if p.Customization != nil {
		out.Customization = *p.Customization
	}
	if p.GeneratedContent != nil {
		gc := p.GeneratedContent.Clone()
		out.GeneratedContent = &gc
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CalendlyURL != nil {
		out.CalendlyURL = *p.CalendlyURL
	}
	if p.HeadshotURL != nil {
		out.HeadshotURL = *p.HeadshotURL
	}
	return out
}

// Event types published over the site lifecycle.
const (
	EventCreated   = "site.created"
	EventGenerated = "site.generated"
	EventDeleted   = "site.deleted"
)

// Event is the payload published for lifecycle changes.
type Event struct {
	Type   string    `json:"type"`
	SiteID string    `json:"siteId"`
	Slug   string    `json:"slug"`
	Status Status    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Page is everything a Renderer needs to draw one site.
type Page struct {
	Site          Site
	Profile       profile.AgentProfile
	Content       GeneratedContent
	Customization Customization
	Stats         Stats
	HeadshotURL   string
	CalendlyURL   string
}
