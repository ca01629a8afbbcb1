package extract

import (
	"regexp"
	"strings"
)

var (
	labeledPhone  = regexp.MustCompile(`(?i)(?:Phone|Tel|Call|Contact)[:\s]*(\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\((\d{3})\)\s*(\d{3})[-.\s]?(\d{4})`),
		regexp.MustCompile(`(\d{3})[-.\s](\d{3})[-.\s](\d{4})`),
		regexp.MustCompile(`(\d{10})`),
	}
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+\s+[\w\s]+(?:St|Street|Ave|Avenue|Blvd|Boulevard|Rd|Road|Dr|Drive|Ln|Lane|Way|Ct|Court)[.,]?\s*(?:Suite|Ste|#|Unit)?\s*\d*[.,]?\s*[\w\s]+,\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?)`),
		regexp.MustCompile(`([\w\s]+,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?)`),
	}
	nonDigits = regexp.MustCompile(`\D`)
)

// Phone returns the first US phone number in doc formatted as (NNN) NNN-NNNN.
// Labeled numbers win over bare ones. It returns "" when none is found.
func Phone(doc string) string {
	if m := labeledPhone.FindStringSubmatch(doc); m != nil {
		if formatted, ok := FormatPhone(m[1]); ok {
			return formatted
		}
		return strings.TrimSpace(m[1])
	}
	for _, p := range phonePatterns {
		if m := p.FindString(doc); m != "" {
			if formatted, ok := FormatPhone(m); ok {
				return formatted
			}
		}
	}
	return ""
}

// FormatPhone normalizes a 10 digit number, or 11 digits with a leading 1.
func FormatPhone(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:], true
}

// Email returns the first address-like token in doc.
func Email(doc string) string {
	return emailPattern.FindString(doc)
}

// Address returns the first full street address, else the first "City, ST ZIP".
func Address(doc string) string {
	for _, p := range addressPatterns {
		if m := p.FindStringSubmatch(doc); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
