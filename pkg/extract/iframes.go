package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var iframePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)iframe\.src\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)embedUrl['":\s]+["']([^"']+)["']`),
	regexp.MustCompile(`(?i)\.attr\(\s*["']src["']\s*,\s*["']([^"']+)["']\s*\)`),
}

// FindIframes returns absolute iframe URLs from the page: iframe src and
// data-src attributes first, then script assignments. Unresolvable and
// javascript:/about:/data: sources are skipped.
func FindIframes(html, base string) []string {
	var found []string
	seen := make(map[string]bool)
	add := func(src string) {
		src = strings.Trim(strings.TrimSpace(src), `"'`)
		if src == "" || isScriptURL(src) {
			return
		}
		resolved, err := Resolve(base, src)
		if err != nil || seen[resolved] {
			return
		}
		seen[resolved] = true
		found = append(found, resolved)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok {
				add(src)
			}
			if src, ok := s.Attr("data-src"); ok {
				add(src)
			}
		})
	}

	text := unescapeSlashes(html)
	for _, pattern := range iframePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			add(match[1])
		}
	}
	return found
}

func isScriptURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "about:") || strings.HasPrefix(lower, "data:")
}
