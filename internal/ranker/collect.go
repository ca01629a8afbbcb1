package ranker

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

var (
	markdownImage = regexp.MustCompile(`!\[([^\]]*)\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	plainImageURL = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]]+\.(?:jpe?g|png|gif|webp|svg)(?:\?[^\s"'<>()\[\]]*)?`)
	summaryEntry  = regexp.MustCompile(`^[-*]\s+(?:!\[([^\]]*)\]\(\s*([^)\s]+)[^)]*\)|(\S+))\s*$`)
)

// collector accumulates candidates in discovery order without duplicates.
// A later sighting of a known URL that carries alt text fills in the missing
// alt and takes over the source.
type collector struct {
	seen  map[string]int
	items []profile.ImageCandidate
}

func (c *collector) add(rawURL, alt string, source profile.SourceKind) {
	u := strings.TrimSpace(rawURL)
	if u == "" || profile.IsEphemeral(u) {
		return
	}
	alt = strings.TrimSpace(alt)
	if i, ok := c.seen[u]; ok {
		if c.items[i].AltText == "" && alt != "" {
			c.items[i].AltText = alt
			c.items[i].Source = source
		}
		return
	}
	c.seen[u] = len(c.items)
	c.items = append(c.items, profile.ImageCandidate{
		URL:     u,
		AltText: alt,
		Source:  source,
	})
}

// Collect gathers every image reference in doc: markdown inline images, bare
// image URLs, <img> elements, and the trailing "Images:" summary block.
// Ephemeral blob: and data: references are dropped.
func Collect(doc string) []profile.ImageCandidate {
	c := &collector{seen: make(map[string]int)}

	for _, m := range markdownImage.FindAllStringSubmatch(doc, -1) {
		c.add(m[2], m[1], profile.SourceMarkdownInline)
	}
	for _, u := range plainImageURL.FindAllString(doc, -1) {
		c.add(u, "", profile.SourcePlainTextURL)
	}
	collectDOM(c, doc)
	for _, entry := range imagesSummary(doc) {
		c.add(entry.URL, entry.AltText, profile.SourceImagesSummary)
	}
	return c.items
}

func collectDOM(c *collector, doc string) {
	if !strings.Contains(strings.ToLower(doc), "<img") {
		return
	}
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return
	}
	parsed.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				c.add(v, alt, profile.SourceDOMAttribute)
				return
			}
		}
		if v, ok := s.Attr("srcset"); ok {
			if first := firstSrcset(v); first != "" {
				c.add(first, alt, profile.SourceDOMAttribute)
			}
		}
	})
}

func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// imagesSummary parses the list that follows an "Images:" heading line.
func imagesSummary(doc string) []profile.ImageCandidate {
	var out []profile.ImageCandidate
	inBlock := false
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inBlock {
			if strings.EqualFold(strings.Trim(line, "#* "), "Images:") {
				inBlock = true
			}
			continue
		}
		if line == "" {
			continue
		}
		m := summaryEntry.FindStringSubmatch(line)
		if m == nil {
			break
		}
		if m[2] != "" {
			out = append(out, profile.ImageCandidate{URL: m[2], AltText: m[1]})
			continue
		}
		if strings.HasPrefix(m[3], "http://") || strings.HasPrefix(m[3], "https://") {
			out = append(out, profile.ImageCandidate{URL: m[3]})
		}
	}
	return out
}
