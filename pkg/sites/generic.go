package sites

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streamscout/internal/logger"
	"streamscout/pkg/extract"
	"streamscout/pkg/fetch"
	"streamscout/pkg/schedule"
)

type GenericConfig struct {
	Name          string
	URL           string
	ItemSelector  string
	TitleSelector string
	TimeSelector  string
	TimeLayout    string
	Location      *time.Location
	LinkSelector  string
	LinkAttr      string
	LogoSelector  string
	Group         string
	Browser       bool
}

// Generic scrapes a listing page with selectors from config. Every selector
// except ItemSelector is relative to the item and optional.
type Generic struct {
	getter   fetch.Getter
	resolver *Resolver
	config   GenericConfig
	now      func() time.Time
	logger   *logger.Logger
}

func NewGeneric(getter fetch.Getter, resolver *Resolver, config GenericConfig) *Generic {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.LinkAttr == "" {
		config.LinkAttr = "href"
	}
	return &Generic{
		getter:   getter,
		resolver: resolver,
		config:   config,
		now:      time.Now,
		logger:   logger.New(config.Name),
	}
}

func (g *Generic) Name() string {
	return g.config.Name
}

func (g *Generic) Events(ctx context.Context) ([]Event, error) {
	doc, err := fetch.Document(ctx, g.getter, g.config.URL, fetch.Options{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.config.Name, err)
	}

	pageURL := g.config.URL
	if doc.Url != nil {
		pageURL = doc.Url.String()
	}

	var events []Event
	doc.Find(g.config.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		if event, ok := g.itemEvent(item, pageURL); ok {
			events = append(events, event)
		}
	})

	g.logger.InfoBg("Found %d events", len(events))
	return events, nil
}

func (g *Generic) itemEvent(item *goquery.Selection, pageURL string) (Event, bool) {
	title := strings.TrimSpace(selectText(item, g.config.TitleSelector))
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return Event{}, false
	}

	linkNode := item
	if g.config.LinkSelector != "" {
		linkNode = item.Find(g.config.LinkSelector).First()
	}
	href, ok := linkNode.Attr(g.config.LinkAttr)
	if !ok {
		return Event{}, false
	}
	link, err := extract.Resolve(pageURL, href)
	if err != nil {
		return Event{}, false
	}

	var start time.Time
	if g.config.TimeSelector != "" {
		clock := strings.TrimSpace(item.Find(g.config.TimeSelector).First().Text())
		if parsed, err := schedule.ParseClock(clock, g.config.TimeLayout, g.config.Location, g.now()); err == nil {
			start = parsed.UTC()
		}
	}

	var logo string
	if g.config.LogoSelector != "" {
		if src, ok := item.Find(g.config.LogoSelector).First().Attr("src"); ok {
			logo, _ = extract.Resolve(pageURL, src)
		}
	}

	slug := extract.SlugFromTitle(title)
	if slug == "" {
		slug = extract.Slug(link)
	}

	return Event{
		Slug:  slug,
		Site:  g.Name(),
		Title: title,
		Group: g.config.Group,
		Logo:  logo,
		Start: start,
		Links: []Link{{URL: link, Referer: pageURL}},
	}, true
}

func selectText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return item.Text()
	}
	return item.Find(selector).First().Text()
}

func (g *Generic) Resolve(ctx context.Context, event Event) (*Stream, error) {
	mode := BrowserOff
	if g.config.Browser {
		mode = BrowserFallback
	}
	return resolveLinks(ctx, g.resolver, event, mode)
}
