package extract

import (
	"net/url"
	"slices"
	"sort"
	"strings"
)

type Candidate struct {
	URL   string
	Score int
}

var variantPatterns = []string{
	"/720p/", "/1080p/", "/480p/", "/360p/", "/240p/",
	"_720.", "_1080.", "_480.", "_360.", "_240.",
	"/chunklist", "/media-", "/segment", "/tracks-",
}

// Score rates a stream URL: master and playlist manifests beat variants,
// HLS beats DASH beats anything else, and short paths get a small bonus.
func Score(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	score := 0
	p := strings.ToLower(parsed.Path)

	if strings.Contains(p, "master") {
		score += 100
	}
	if strings.Contains(p, "playlist") || strings.Contains(p, "index") {
		score += 50
	}
	if slices.ContainsFunc(variantPatterns, func(vp string) bool {
		return strings.Contains(p, vp)
	}) {
		score -= 50
	}

	switch {
	case strings.HasSuffix(p, ".m3u8"):
		score += 30
	case strings.HasSuffix(p, ".mpd"):
		score += 10
	}

	if len(p) < 50 {
		score += 10
	}
	return score
}

// Rank scores and orders candidates best first. Ties keep input order.
func Rank(urls []string) []Candidate {
	candidates := make([]Candidate, 0, len(urls))
	seen := make(map[string]bool)
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		candidates = append(candidates, Candidate{URL: u, Score: Score(u)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Best returns the highest ranked URL.
func Best(urls []string) (string, bool) {
	ranked := Rank(urls)
	if len(ranked) == 0 {
		return "", false
	}
	return ranked[0].URL, true
}
