// Package ranker classifies the images found in a scraped profile document
// into a company logo and a ranked headshot choice.
package ranker

import (
	"net/url"
	"strings"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Tier identifies which rule picked the headshot. TierNone means no rule matched.
type Tier int

// Headshot selection tiers, tried in order.
const (
	TierNone Tier = iota
	TierBrandPhoto
	TierGenericPhoto
	TierCDN
	TierFirstRaster
)

var (
	brandPhotoTokens   = []string{"personalpic", "agentphoto", "profilepic"}
	genericPhotoTokens = []string{"profile", "headshot", "photo", "picture", "portrait"}
	cdnTokens          = []string{"cloudinary", "amazonaws", "cloudfront", "imgix", "blob.core"}
	rasterExtensions   = []string{".jpg", ".jpeg", ".png"}
)

const brandToken = "ushealth"

// Result is the outcome of ranking one document.
type Result struct {
	Candidates  []profile.ImageCandidate
	LogoURL     string
	HeadshotURL string
	Tier        Tier
}

// Rank collects candidates from doc, resolves the logo and selects a headshot.
// companyDetected enables the fallback brand logo.
func Rank(doc string, companyDetected bool) Result {
	candidates := Collect(doc)
	logo := ResolveLogo(candidates, companyDetected)
	headshot, tier := SelectHeadshot(candidates, logo)
	if headshot != "" && profile.IsDisqualifiedHeadshot(headshot) {
		headshot, tier = "", TierNone
	}
	return Result{
		Candidates:  candidates,
		LogoURL:     logo,
		HeadshotURL: headshot,
		Tier:        tier,
	}
}

// ResolveLogo returns the first candidate that looks like a logo, falling back
// to the brand logo when a company was detected.
func ResolveLogo(candidates []profile.ImageCandidate, companyDetected bool) string {
	for _, c := range candidates {
		if isLogo(c) {
			return c.URL
		}
	}
	if companyDetected {
		return profile.BrandLogoURL
	}
	return ""
}

func isLogo(c profile.ImageCandidate) bool {
	alt := strings.ToLower(c.AltText)
	lowerURL := strings.ToLower(c.URL)
	if strings.Contains(alt, "logo") || strings.Contains(lowerURL, "logo") {
		return true
	}
	return strings.Contains(alt, brandToken) || strings.Contains(lowerURL, brandToken)
}

// SelectHeadshot runs the tiered cascade over candidates. Each tier scans the
// whole list before the next one is tried. logoURL is never selected.
func SelectHeadshot(candidates []profile.ImageCandidate, logoURL string) (string, Tier) {
	rules := []struct {
		tier  Tier
		match func(profile.ImageCandidate) bool
	}{
		{TierBrandPhoto, func(c profile.ImageCandidate) bool {
			return containsAny(haystack(c), brandPhotoTokens)
		}},
		{TierGenericPhoto, func(c profile.ImageCandidate) bool {
			h := haystack(c)
			return containsAny(h, genericPhotoTokens) && !strings.Contains(h, "logo")
		}},
		{TierCDN, func(c profile.ImageCandidate) bool {
			u := strings.ToLower(c.URL)
			return containsAny(u, cdnTokens) && !containsAny(u, []string{"logo", "icon"})
		}},
		{TierFirstRaster, func(c profile.ImageCandidate) bool {
			u := strings.ToLower(c.URL)
			if !hasRasterExtension(u) {
				return false
			}
			return !containsAny(u, []string{"logo", "icon", "svg"}) && !profile.IsTracking(u)
		}},
	}
	for _, rule := range rules {
		for _, c := range candidates {
			if logoURL != "" && c.URL == logoURL {
				continue
			}
			if rule.match(c) {
				return c.URL, rule.tier
			}
		}
	}
	return "", TierNone
}

func haystack(c profile.ImageCandidate) string {
	return strings.ToLower(c.URL + " " + c.AltText)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func hasRasterExtension(lowerURL string) bool {
	p := strings.ToLower(pathOf(lowerURL))
	for _, ext := range rasterExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
