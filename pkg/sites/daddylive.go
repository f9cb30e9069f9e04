package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"streamscout/internal/logger"
	"streamscout/pkg/extract"
	"streamscout/pkg/fetch"
	"streamscout/pkg/schedule"
)

type DaddyliveConfig struct {
	BaseURL      string
	SchedulePath string
	EmbedPath    string // must contain {id}
	Location     *time.Location
	Categories   []string
	Dictionary   *schedule.Dictionary
}

// Daddylive reads the generated JSON schedule: day header → category →
// events, each event carrying one or more channels.
type Daddylive struct {
	getter     fetch.Getter
	resolver   *Resolver
	config     DaddyliveConfig
	categories map[string]bool
	now        func() time.Time
	logger     *logger.Logger
}

type scheduleItem struct {
	Time      string          `json:"time"`
	Event     string          `json:"event"`
	Channels  json.RawMessage `json:"channels"`
	Channels2 json.RawMessage `json:"channels2"`
}

type scheduleChannel struct {
	Name string    `json:"channel_name"`
	ID   channelID `json:"channel_id"`
}

// channelID accepts both "51" and 51.
type channelID string

func (c *channelID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = channelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("channel id %s: %w", data, err)
	}
	*c = channelID(n.String())
	return nil
}

func NewDaddylive(getter fetch.Getter, resolver *Resolver, config DaddyliveConfig) *Daddylive {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Dictionary == nil {
		config.Dictionary = schedule.DefaultDictionary()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	categories := make(map[string]bool)
	for _, category := range config.Categories {
		categories[strings.ToLower(strings.TrimSpace(category))] = true
	}

	return &Daddylive{
		getter:     getter,
		resolver:   resolver,
		config:     config,
		categories: categories,
		now:        time.Now,
		logger:     logger.New("daddylive"),
	}
}

func (d *Daddylive) Name() string {
	return "daddylive"
}

func (d *Daddylive) Events(ctx context.Context) ([]Event, error) {
	resp, err := d.getter.Get(ctx, d.config.BaseURL+d.config.SchedulePath, fetch.Options{
		Referer: d.config.BaseURL + "/",
	})
	if err != nil {
		return nil, fmt.Errorf("daddylive: %w", err)
	}

	var days map[string]map[string][]scheduleItem
	if err := json.Unmarshal(resp.Body, &days); err != nil {
		return nil, fmt.Errorf("daddylive: failed to decode schedule: %w", err)
	}

	headers := make([]string, 0, len(days))
	dates := make(map[string]time.Time, len(days))
	for header := range days {
		day, err := schedule.ParseDayHeader(header, d.config.Location)
		if err != nil {
			d.logger.DebugBg("Using today for header %q: %v", header, err)
			now := d.now().In(d.config.Location)
			day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.config.Location)
		}
		dates[header] = day
		headers = append(headers, header)
	}
	sort.Slice(headers, func(i, j int) bool {
		return dates[headers[i]].Before(dates[headers[j]])
	})

	var events []Event
	for _, header := range headers {
		categories := days[header]
		names := make([]string, 0, len(categories))
		for name := range categories {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, category := range names {
			if len(d.categories) > 0 && !d.categories[strings.ToLower(strings.TrimSpace(category))] {
				continue
			}
			for _, item := range categories[category] {
				events = append(events, d.itemEvents(dates[header], category, item)...)
			}
		}
	}

	d.logger.InfoBg("Found %d channel events across %d days", len(events), len(headers))
	return events, nil
}

// itemEvents expands one schedule item into one event per channel.
func (d *Daddylive) itemEvents(day time.Time, category string, item scheduleItem) []Event {
	title := strings.TrimSpace(item.Event)
	if title == "" {
		return nil
	}

	var start time.Time
	if parsed, err := schedule.ParseClock(item.Time, "", d.config.Location, day); err == nil {
		start = parsed.UTC()
	}

	sport := d.config.Dictionary.Sport(category)
	channels := append(decodeChannels(item.Channels), decodeChannels(item.Channels2)...)

	var events []Event
	for _, channel := range channels {
		id := strings.TrimSpace(string(channel.ID))
		if id == "" {
			continue
		}
		name := strings.TrimSpace(channel.Name)
		eventTitle := title
		if name != "" {
			eventTitle = fmt.Sprintf("%s (%s)", title, name)
		}
		events = append(events, Event{
			Slug:     extract.SlugFromTitle(title) + "-" + id,
			Site:     d.Name(),
			Title:    eventTitle,
			Sport:    sport,
			Group:    sport,
			Start:    start,
			Links:    []Link{{URL: d.EmbedURL(id), Referer: d.config.BaseURL + "/", Label: name}},
			CacheKey: "channel-" + id,
		})
	}
	return events
}

// decodeChannels accepts both a list of channels and an object keyed by index.
func decodeChannels(raw json.RawMessage) []scheduleChannel {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var list []scheduleChannel
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var byKey map[string]scheduleChannel
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil
	}
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		list = append(list, byKey[key])
	}
	return list
}

func (d *Daddylive) EmbedURL(id string) string {
	return d.config.BaseURL + strings.ReplaceAll(d.config.EmbedPath, "{id}", id)
}

func (d *Daddylive) Resolve(ctx context.Context, event Event) (*Stream, error) {
	return resolveLinks(ctx, d.resolver, event, BrowserFallback)
}
