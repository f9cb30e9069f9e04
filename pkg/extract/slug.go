package extract

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SlugFromTitle lower-cases title, folds accents to ASCII and joins the
// remaining alphanumeric runs with dashes.
func SlugFromTitle(title string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Slug derives an identifier from the last meaningful path segment of a URL,
// without its extension. Generic manifest names fall back to the parent
// directory, then to the host.
func Slug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SlugFromTitle(rawURL)
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	for i := len(segments) - 1; i >= 0; i-- {
		name := strings.TrimSuffix(segments[i], path.Ext(segments[i]))
		if isGenericName(name) {
			continue
		}
		if slug := SlugFromTitle(name); slug != "" {
			return slug
		}
	}
	return SlugFromTitle(u.Hostname())
}

func isGenericName(name string) bool {
	switch strings.ToLower(name) {
	case "index", "master", "playlist", "mono", "chunklist", "manifest", "embed", "player", "hls", "live":
		return true
	}
	return false
}
