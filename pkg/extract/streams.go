package extract

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrNoStream is returned when no stream URL could be found for a page.
var ErrNoStream = errors.New("no stream found")

var (
	// absolute manifest URLs anywhere in the text. The extension must sit in
	// the path and end the token, so hosts such as edge.mpdcdn.net do not cut
	// the match short.
	manifestURLPattern = regexp.MustCompile(`(?i)((?:https?:)?//[^/\s"'<>` + "`" + `\\]+/[^\s"'<>` + "`" + `\\]*?\.(?:m3u8|mpd)(?:[?#][^\s"'<>` + "`" + `\\]*)?)(?:[\s"'<>` + "`" + `\\,;)]|$)`)

	// player config values, which may be relative
	playerSourcePattern = regexp.MustCompile(`(?i)(?:source|file|src|hls|url)\s*[:=]\s*["']([^"'\s]+\.(?:m3u8|mpd)[^"'\s]*)["']`)

	cdnKeywords  = []string{"planetary", "lovecdn", "cdn", "stream", "live", "hls", "fmp4", "manifest"}
	cdnMarkers   = []string{"token", ".m3u", "playlist", "index"}
	staticAssets = []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".woff", ".woff2", ".ico"}
)

// unescapeSlashes undoes JSON and JS escaping of forward slashes.
func unescapeSlashes(text string) string {
	replacer := strings.NewReplacer(`\/`, "/", `\u002F`, "/", `\u002f`, "/", `\x2F`, "/", `\x2f`, "/")
	return replacer.Replace(text)
}

// FindStreams returns every manifest URL in text, in order of first
// appearance. Protocol-relative URLs get https; player config values that are
// relative are returned as-is for Resolve.
func FindStreams(text string) []string {
	text = unescapeSlashes(text)

	var found []string
	seen := make(map[string]bool)
	add := func(candidate string) {
		candidate = strings.TrimRight(strings.TrimSpace(candidate), `,;)`)
		if strings.HasPrefix(candidate, "//") {
			candidate = "https:" + candidate
		}
		if candidate == "" || seen[candidate] {
			return
		}
		seen[candidate] = true
		found = append(found, candidate)
	}

	for _, match := range manifestURLPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}
	for _, match := range playerSourcePattern.FindAllStringSubmatch(text, -1) {
		if !strings.Contains(match[1], "//") {
			add(match[1])
		}
	}
	return found
}

// Resolve makes ref absolute against base. Protocol-relative refs get the
// scheme of base.
func Resolve(base, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return "", fmt.Errorf("cannot resolve %q without an absolute base", ref)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// IsPotentialStream reports whether a captured request URL may be a manifest.
func IsPotentialStream(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, ".m3u8") || strings.Contains(lower, ".mpd") {
		return true
	}

	if u, err := url.Parse(lower); err == nil {
		ext := path.Ext(u.Path)
		for _, asset := range staticAssets {
			if ext == asset {
				return false
			}
		}
	}

	if strings.Contains(lower, "token=") {
		return true
	}
	for _, keyword := range cdnKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		for _, marker := range cdnMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// TokenManifest turns a tokenised player URL into the manifest URL next to
// it. URLs that already point at a manifest, or carry no token, are returned
// unchanged.
func TokenManifest(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(u.Path), ".m3u8") {
		return rawURL, nil
	}

	token := u.Query().Get("token")
	if token == "" {
		return rawURL, nil
	}

	basePath := u.Path
	if idx := strings.LastIndex(basePath, "/"); idx != -1 && strings.Contains(basePath[idx:], ".") {
		basePath = basePath[:idx]
	}
	basePath = strings.TrimSuffix(basePath, "/")

	return fmt.Sprintf("%s://%s%s/index.m3u8?token=%s", u.Scheme, u.Host, basePath, url.QueryEscape(token)), nil
}
