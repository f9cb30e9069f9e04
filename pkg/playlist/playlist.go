package playlist

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jamesnetherton/m3u"
)

const (
	HeaderStylePipe = "pipe"
	HeaderStyleNone = "none"
)

// Entry is one playable stream in the output playlists.
type Entry struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Group     string    `json:"group,omitempty"`
	Logo      string    `json:"logo,omitempty"`
	URL       string    `json:"url"`
	Referer   string    `json:"referer,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Start     time.Time `json:"start,omitzero"`
}

type Options struct {
	Group       string
	Logo        string
	HeaderStyle string
	Location    *time.Location
}

// Prepare sorts entries by start time then title, entries without a start
// last, and drops entries with an empty or repeated URL.
func Prepare(entries []Entry) []Entry {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start.IsZero() != b.Start.IsZero() {
			return !a.Start.IsZero()
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, entry := range sorted {
		if entry.URL == "" || seen[entry.URL] {
			continue
		}
		seen[entry.URL] = true
		out = append(out, entry)
	}
	return out
}

// Build converts entries into an m3u playlist.
func Build(entries []Entry, opts Options) m3u.Playlist {
	playlist := m3u.Playlist{Tracks: make([]m3u.Track, 0, len(entries))}

	for _, entry := range Prepare(entries) {
		group := entry.Group
		if group == "" {
			group = opts.Group
		}
		logo := entry.Logo
		if logo == "" {
			logo = opts.Logo
		}

		track := m3u.Track{
			Name:   displayName(entry, opts.Location),
			Length: -1,
			URI:    StreamURL(entry, opts.HeaderStyle),
		}
		if entry.Slug != "" {
			track.Tags = append(track.Tags, m3u.Tag{Name: "tvg-id", Value: entry.Slug})
		}
		track.Tags = append(track.Tags, m3u.Tag{Name: "tvg-name", Value: entry.Title})
		if logo != "" {
			track.Tags = append(track.Tags, m3u.Tag{Name: "tvg-logo", Value: logo})
		}
		if group != "" {
			track.Tags = append(track.Tags, m3u.Tag{Name: "group-title", Value: group})
		}

		playlist.Tracks = append(playlist.Tracks, track)
	}
	return playlist
}

// WriteM3U writes entries as an extended M3U playlist.
func WriteM3U(w io.Writer, entries []Entry, opts Options) error {
	reader, err := m3u.Marshall(Build(entries, opts))
	if err != nil {
		return fmt.Errorf("failed to marshal playlist: %w", err)
	}
	_, err = io.Copy(w, reader)
	return err
}

// WriteJSON writes a pretty printed slug to URL map. Keys come out sorted.
func WriteJSON(w io.Writer, entries []Entry) error {
	streams := make(map[string]string, len(entries))
	for _, entry := range Prepare(entries) {
		slug := entry.Slug
		if slug == "" {
			continue
		}
		if _, ok := streams[slug]; !ok {
			streams[slug] = entry.URL
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(streams)
}

// StreamURL returns the entry URL with its headers appended Kodi-style
// (url|Referer=..&Origin=..&User-Agent=..) when style is pipe.
func StreamURL(entry Entry, style string) string {
	if style != HeaderStylePipe {
		return entry.URL
	}

	var headers []string
	if entry.Referer != "" {
		headers = append(headers, "Referer="+url.QueryEscape(entry.Referer))
	}
	if entry.Origin != "" {
		headers = append(headers, "Origin="+url.QueryEscape(entry.Origin))
	}
	if entry.UserAgent != "" {
		headers = append(headers, "User-Agent="+url.QueryEscape(entry.UserAgent))
	}
	if len(headers) == 0 {
		return entry.URL
	}
	return entry.URL + "|" + strings.Join(headers, "&")
}

func displayName(entry Entry, loc *time.Location) string {
	title := strings.TrimSpace(entry.Title)
	if entry.Start.IsZero() || loc == nil {
		return title
	}
	return entry.Start.In(loc).Format("15:04") + " " + title
}

// SaveFile writes path atomically through a temp file in the same directory.
func SaveFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
