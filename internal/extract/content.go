package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	bioMarkup      = regexp.MustCompile(`[#*_\[\]]`)
	bioKeywords    = regexp.MustCompile(`(?i)help|coverage|insurance|families|healthcare|experience|dedicated`)
	companyPattern = regexp.MustCompile(`(?i)USHEALTH|US Health`)
)

// productKeywords is ordered; the output keeps this order.
var productKeywords = []string{"health", "dental", "vision", "life", "supplemental", "medicare", "aca"}

const (
	minBioLen = 100
	maxBioLen = 1000
)

// Bio returns the first paragraph that reads like an agent biography, or the
// fallback sentence.
func Bio(doc string) string {
	for _, para := range paragraphBreak.Split(doc, -1) {
		clean := strings.TrimSpace(bioMarkup.ReplaceAllString(para, ""))
		n := utf8.RuneCountInString(clean)
		if n <= minBioLen || n >= maxBioLen {
			continue
		}
		if bioKeywords.MatchString(clean) {
			return clean
		}
	}
	return profile.FallbackBio
}

// Products returns the product tags mentioned in doc, defaulting to
// Health, Dental and Vision.
func Products(doc string) []string {
	lower := strings.ToLower(doc)
	seen := make(map[string]struct{}, len(productKeywords))
	var out []string
	for _, kw := range productKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		tag := productTag(kw)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return append([]string(nil), profile.DefaultProducts...)
	}
	return out
}

func productTag(keyword string) string {
	if keyword == "aca" {
		return "ACA"
	}
	return titleCase(keyword)
}

// Company returns the brand company name when the brand is mentioned.
func Company(doc string) string {
	if companyPattern.MatchString(doc) {
		return profile.BrandCompany
	}
	return ""
}
