package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"streamscout/internal/logger"
	"streamscout/pkg/extract"
	"streamscout/pkg/manager"
	"streamscout/pkg/schedule"
)

type AgendaConfig struct {
	URL         string
	RowSelector string
	Location    *time.Location
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	Dictionary  *schedule.Dictionary
}

// Agenda scrapes an HTML schedule table. Rows are read in document order:
// a row with a th cell or the "day" class sets the date for the rows after
// it; every other row is time | sport | competition | match, with the stream
// links as anchors anywhere in the row.
type Agenda struct {
	config   AgendaConfig
	proxies  manager.ProxyManager
	resolver *Resolver
	now      func() time.Time
	logger   *logger.Logger
}

func NewAgenda(resolver *Resolver, proxies manager.ProxyManager, config AgendaConfig) *Agenda {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Dictionary == nil {
		config.Dictionary = schedule.DefaultDictionary()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	return &Agenda{
		config:   config,
		proxies:  proxies,
		resolver: resolver,
		now:      time.Now,
		logger:   logger.New("agenda"),
	}
}

func (a *Agenda) Name() string {
	return "agenda"
}

func (a *Agenda) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector()
	if a.config.UserAgent != "" {
		c.UserAgent = a.config.UserAgent
	}
	c.AllowURLRevisit = true
	c.SetRequestTimeout(a.config.Timeout)

	if a.proxies != nil {
		c.SetProxyFunc(func(*http.Request) (*url.URL, error) {
			proxy, err := a.proxies.Next()
			if err != nil {
				return nil, nil
			}
			return proxy.URL(), nil
		})
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	return c
}

func (a *Agenda) Events(ctx context.Context) ([]Event, error) {
	var events []Event
	var lastErr error

	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		events = events[:0]
		day := a.today()

		c := a.collector(ctx)
		c.OnHTML(a.config.RowSelector, func(e *colly.HTMLElement) {
			if header, ok := dayHeader(e); ok {
				if parsed, err := schedule.ParseDayHeader(header, a.config.Location); err == nil {
					day = parsed
				}
				return
			}
			if event, ok := a.rowEvent(e, day); ok {
				events = append(events, event)
			}
		})

		var visitErr error
		c.OnError(func(_ *colly.Response, err error) {
			visitErr = err
		})

		if err := c.Visit(a.config.URL); err != nil {
			visitErr = err
		}
		c.Wait()

		if visitErr == nil && ctx.Err() == nil {
			a.logger.InfoBg("Found %d events", len(events))
			return events, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = visitErr
		a.logger.WarnBg("Attempt %d/%d for %s failed: %v", attempt, a.config.MaxRetries, a.config.URL, visitErr)
	}

	return nil, fmt.Errorf("agenda: %w", lastErr)
}

func (a *Agenda) today() time.Time {
	now := a.now().In(a.config.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.config.Location)
}

func dayHeader(e *colly.HTMLElement) (string, bool) {
	if th := strings.TrimSpace(e.ChildText("th")); th != "" {
		return th, true
	}
	for _, class := range strings.Fields(e.Attr("class")) {
		if class == "day" {
			return strings.TrimSpace(e.Text), true
		}
	}
	return "", false
}

func (a *Agenda) rowEvent(e *colly.HTMLElement, day time.Time) (Event, bool) {
	dict := a.config.Dictionary

	match := strings.TrimSpace(e.ChildText("td:nth-child(4)"))
	if match == "" {
		return Event{}, false
	}
	title := dict.Translate(match)
	sport := dict.Sport(strings.TrimSpace(e.ChildText("td:nth-child(2)")))
	competition := dict.Competition(strings.TrimSpace(e.ChildText("td:nth-child(3)")))

	var links []Link
	e.ForEach("a[href]", func(_ int, anchor *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(anchor.Attr("href"))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		links = append(links, Link{URL: href, Referer: a.config.URL, Label: strings.TrimSpace(anchor.Text)})
	})
	if len(links) == 0 {
		return Event{}, false
	}

	var start time.Time
	if parsed, err := schedule.ParseClock(e.ChildText("td:nth-child(1)"), "", a.config.Location, day); err == nil {
		start = parsed.UTC()
	}

	slug := extract.SlugFromTitle(title)
	if !start.IsZero() {
		slug += start.In(a.config.Location).Format("-0102-1504")
	}

	group := competition
	if group == "" {
		group = sport
	}

	return Event{
		Slug:        slug,
		Site:        a.Name(),
		Title:       title,
		Sport:       sport,
		Competition: competition,
		Group:       group,
		Start:       start,
		Links:       links,
	}, true
}

func (a *Agenda) Resolve(ctx context.Context, event Event) (*Stream, error) {
	return resolveLinks(ctx, a.resolver, event, BrowserFallback)
}
