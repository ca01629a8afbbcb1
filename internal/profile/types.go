// Package profile defines the agent profile produced by a scrape, the image
// candidates considered while building it, and the collaborators the
// scrape pipeline depends on.
package profile

// Fallback values used when a field cannot be recovered from the page.
const (
	PlaceholderName = "Insurance Agent"
	FallbackBio     = "A dedicated healthcare professional committed to helping families find the right coverage for their needs."
	BrandCompany    = "USHEALTH Group"
	BrandLogoURL    = "https://www.ushealthgroup.com/wp-content/uploads/2023/03/USHG-Logo-Color.png"
)

// DefaultProducts is used when no product keyword appears in the document.
var DefaultProducts = []string{"Health", "Dental", "Vision"}

// AgentProfile is the structured record extracted from one profile page.
// Optional fields are empty strings when absent.
type AgentProfile struct {
	Name           string   `json:"name"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	Address        string   `json:"address,omitempty"`
	Bio            string   `json:"bio"`
	Products       []string `json:"products"`
	CompanyName    string   `json:"companyName,omitempty"`
	CompanyLogoURL string   `json:"companyLogoUrl,omitempty"`
	SourceURL      string   `json:"sourceUrl"`
	HeadshotURL    string   `json:"headshotUrl,omitempty"`
}

// WithHeadshot returns a copy of p carrying the given headshot reference.
func (p AgentProfile) WithHeadshot(ref string) AgentProfile {
	cp := p.Clone()
	cp.HeadshotURL = ref
	return cp
}

// Clone returns a deep copy so callers never share the products slice.
func (p AgentProfile) Clone() AgentProfile {
	cp := p
	if p.Products != nil {
		cp.Products = append([]string(nil), p.Products...)
	}
	return cp
}

// SourceKind records where in the document an image candidate was found.
type SourceKind string

// Candidate sources, in the order the ranker collects them.
const (
	SourceMarkdownInline SourceKind = "markdown-inline"
	SourcePlainTextURL   SourceKind = "plain-text-url"
	SourceDOMAttribute   SourceKind = "dom-attribute"
	SourceImagesSummary  SourceKind = "images-summary"
)

// ImageCandidate is one image URL discovered in a scraped document.
type ImageCandidate struct {
	URL     string     `json:"url"`
	AltText string     `json:"altText,omitempty"`
	Source  SourceKind `json:"sourceKind"`
}

// Image is a downloaded or decoded raster buffer.
type Image struct {
	Data        []byte
	ContentType string
	SourceURL   string
}
