package profile

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL marks a malformed or disallowed profile URL.
var ErrInvalidURL = errors.New("invalid profile url")

// ErrInvalidImage marks an image buffer that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// DefaultAllowedHosts are the domains that publish agent profile pages.
var DefaultAllowedHosts = []string{"ushagent.com", "ushealthgroup.com"}

// NormalizeURL trims raw, adds an https scheme when missing, and checks the
// host against allowedHosts. A nil allowedHosts uses DefaultAllowedHosts.
func NormalizeURL(raw string, allowedHosts []string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if allowedHosts == nil {
		allowedHosts = DefaultAllowedHosts
	}
	if !HostAllowed(u.Hostname(), allowedHosts) {
		return "", fmt.Errorf("%w: host %q is not a supported profile site", ErrInvalidURL, u.Hostname())
	}
	return u.String(), nil
}

// HostAllowed reports whether host equals or is a subdomain of an allowed host.
func HostAllowed(host string, allowedHosts []string) bool {
	host = strings.ToLower(host)
	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and collapses every run of non-alphanumerics to "-".
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
