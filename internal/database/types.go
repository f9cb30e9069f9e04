package database

import (
	"time"
)

// timeLayout is how every DATETIME column is written. Values are always UTC so
// they compare correctly as text and against CURRENT_TIMESTAMP.
const timeLayout = "2006-01-02 15:04:05"

// StatusHealthy is the status value the checkers write for a working proxy or stream.
const StatusHealthy = "healthy"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ProxyHealth is the outcome of one proxy check
type ProxyHealth struct {
	Status       string
	ResponseTime time.Duration
	CheckedAt    time.Time
}

// StreamRecord is a resolved stream as persisted after a run
type StreamRecord struct {
	Slug      string
	Source    string
	Title     string
	Group     string
	Logo      string
	URL       string
	Referer   string
	Origin    string
	UserAgent string
	StartAt   time.Time
}

// StreamHealth is the outcome of one manifest check
type StreamHealth struct {
	Status       string
	Kind         string
	Variants     int
	ResponseTime time.Duration
	CheckedAt    time.Time
}

// CachedStream is one embed page resolution
type CachedStream struct {
	URL       string
	Referer   string
	Origin    string
	UserAgent string
}

// RunSummary is written when a run finishes
type RunSummary struct {
	Events  int
	Streams int
	Failed  int
	Err     error
}

// Stats contains statistics about the database
type Stats struct {
	Proxies ProxyStats  `json:"proxies"`
	Streams StreamStats `json:"streams"`
	Runs    RunStats    `json:"runs"`
}

type ProxyStats struct {
	Total   int            `json:"total"`
	Healthy int            `json:"healthy"`
	ByType  map[string]int `json:"by_type"`
}

type StreamStats struct {
	Total    int            `json:"total"`
	Healthy  int            `json:"healthy"`
	BySource map[string]int `json:"by_source"`
}

type RunStats struct {
	Total      int        `json:"total"`
	LastID     string     `json:"last_id,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastStart  *time.Time `json:"last_started_at,omitempty"`
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
