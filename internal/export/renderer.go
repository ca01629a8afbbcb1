// Package export renders a site as one self-contained HTML document, used
// both for the live page and for the downloadable export.
package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/zdub15/agent-website-generator/internal/site"
)

//go:embed templates/site.html.tmpl
var templateFS embed.FS

var (
	hexColor   = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
	fontFamily = regexp.MustCompile(`^[A-Za-z0-9 \-]{1,64}$`)
	nonDigits  = regexp.MustCompile(`\D`)
)

// Theme is the sanitized customization injected into the stylesheet.
type Theme struct {
	Primary   template.CSS
	Secondary template.CSS
	Accent    template.CSS
	Font      string
}

type view struct {
	site.Page
	Theme Theme
	Year  int
}

// Renderer executes the embedded site template.
type Renderer struct {
	tmpl *template.Template
	now  func() time.Time
}

// NewRenderer parses the embedded template. now supplies the footer year and
// defaults to time.Now.
func NewRenderer(now func() time.Time) (*Renderer, error) {
	if now == nil {
		now = time.Now
	}
	tmpl, err := template.New("site.html.tmpl").Funcs(template.FuncMap{
		"telDigits": TelDigits,
		"stars":     stars,
		"initial":   initial,
		"join":      strings.Join,
	}).ParseFS(templateFS, "templates/site.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse site template: %w", err)
	}
	return &Renderer{tmpl: tmpl, now: now}, nil
}

// Render writes the full HTML document for page to w.
func (r *Renderer) Render(w io.Writer, page site.Page) error {
	v := view{
		Page:  page,
		Theme: ThemeFor(page.Customization),
		Year:  r.now().Year(),
	}
	if err := r.tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("execute site template: %w", err)
	}
	return nil
}

// ThemeFor validates the customization colors and font. Values that are not
// plain hex colors or font names fall back to the brand defaults.
func ThemeFor(c site.Customization) Theme {
	c = c.WithDefaults()
	d := site.DefaultCustomization()
	font := c.FontFamily
	if !fontFamily.MatchString(font) {
		font = d.FontFamily
	}
	return Theme{
		Primary:   color(c.PrimaryColor, d.PrimaryColor),
		Secondary: color(c.SecondaryColor, d.SecondaryColor),
		Accent:    color(c.AccentColor, d.AccentColor),
		Font:      font,
	}
}

func color(value, fallback string) template.CSS {
	if hexColor.MatchString(value) {
		return template.CSS(value) //nolint:gosec // validated hex color
	}
	return template.CSS(fallback) //nolint:gosec // constant
}

// TelDigits strips everything but digits from a phone number for tel: links.
func TelDigits(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

func stars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating)
}

func initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		return strings.ToUpper(string(r))
	}
	return "?"
}
