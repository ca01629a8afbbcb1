package profile

import "strings"

// trackingTokens identify third-party tracking scripts and pixels.
var trackingTokens = []string{
	"trustedform",
	"facebook.com/tr",
	"doubleclick",
	"google-analytics",
	"pixel",
}

// IsEphemeral reports whether rawURL is a browser-local object or inline data reference.
func IsEphemeral(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	return strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:")
}

// IsTracking reports whether rawURL contains a known tracking token.
func IsTracking(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, token := range trackingTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// IsDisqualifiedHeadshot reports whether rawURL must never be stored as a
// headshot: ephemeral references, vector or animated formats, and tracking URLs.
func IsDisqualifiedHeadshot(rawURL string) bool {
	if IsEphemeral(rawURL) {
		return true
	}
	path := strings.ToLower(rawURL)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if strings.HasSuffix(path, ".svg") || strings.HasSuffix(path, ".gif") {
		return true
	}
	return IsTracking(rawURL)
}

// Sanitize enforces the profile invariants on p and returns the corrected copy.
func Sanitize(p AgentProfile) AgentProfile {
	cp := p.Clone()
	if strings.TrimSpace(cp.Bio) == "" {
		cp.Bio = FallbackBio
	}
	if len(cp.Products) == 0 {
		cp.Products = append([]string(nil), DefaultProducts...)
	}
	if strings.TrimSpace(cp.Name) == "" {
		cp.Name = PlaceholderName
	}
	if cp.HeadshotURL != "" && IsDisqualifiedHeadshot(cp.HeadshotURL) {
		cp.HeadshotURL = ""
	}
	return cp
}
