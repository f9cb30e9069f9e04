package sites

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streamscout/internal/logger"
	"streamscout/pkg/extract"
	"streamscout/pkg/fetch"
	"streamscout/pkg/schedule"
)

const channelSelector = "button a[href$='.htm']"

type HattrickConfig struct {
	BaseURL string
	Group   string
	Logo    string
	Rules   []schedule.RenameRule
}

// Hattrick lists the channel buttons of the front page. Mirrors of one
// channel are merged into a single event with several links.
type Hattrick struct {
	getter   fetch.Getter
	resolver *Resolver
	config   HattrickConfig
	logger   *logger.Logger
}

// NewHattrick expects the JA3 fetcher as getter; the plain client gets a
// challenge page.
func NewHattrick(getter fetch.Getter, resolver *Resolver, config HattrickConfig) *Hattrick {
	if len(config.Rules) == 0 {
		config.Rules = schedule.DefaultRenameRules()
	}
	return &Hattrick{
		getter:   getter,
		resolver: resolver,
		config:   config,
		logger:   logger.New("hattrick"),
	}
}

func (h *Hattrick) Name() string {
	return "hattrick"
}

func (h *Hattrick) Events(ctx context.Context) ([]Event, error) {
	doc, err := fetch.Document(ctx, h.getter, h.config.BaseURL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("hattrick: %w", err)
	}

	var events []Event
	index := make(map[string]int)

	doc.Find(channelSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, err := extract.Resolve(h.config.BaseURL, href)
		if err != nil {
			return
		}

		label := strings.TrimSpace(s.Text())
		name := schedule.Rename(h.config.Rules, label)
		base := schedule.BaseName(name)
		slug := extract.SlugFromTitle(base)
		if slug == "" {
			slug = extract.Slug(link)
		}

		if i, ok := index[slug]; ok {
			events[i].Links = append(events[i].Links, Link{URL: link, Referer: h.config.BaseURL, Label: label})
			return
		}
		index[slug] = len(events)
		events = append(events, Event{
			Slug:     slug,
			Site:     h.Name(),
			Title:    name,
			Group:    h.config.Group,
			Logo:     h.config.Logo,
			Links:    []Link{{URL: link, Referer: h.config.BaseURL, Label: label}},
			CacheKey: base,
		})
	})

	h.logger.InfoBg("Found %d channels", len(events))
	return events, nil
}

func (h *Hattrick) Resolve(ctx context.Context, event Event) (*Stream, error) {
	return resolveLinks(ctx, h.resolver, event, BrowserFirst)
}
