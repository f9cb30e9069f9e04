package sites

import (
	"context"
	"fmt"
	"time"

	"streamscout/internal/cache"
)

// Stream is a resolved manifest plus the headers a player must send.
type Stream = cache.Stream

// Link is one page or embed URL an event can be watched from.
type Link struct {
	URL     string
	Referer string
	Label   string
}

// Event is one listed match or channel.
type Event struct {
	Slug        string
	Site        string
	Title       string
	Sport       string
	Competition string
	Group       string
	Logo        string
	Start       time.Time
	Links       []Link
	// CacheKey groups mirrors of one channel; empty means Slug.
	CacheKey string
}

func (e Event) cacheKey() string {
	key := e.CacheKey
	if key == "" {
		key = e.Slug
	}
	return e.Site + ":" + key
}

// Site is one scraped website.
type Site interface {
	Name() string
	Events(ctx context.Context) ([]Event, error)
	Resolve(ctx context.Context, event Event) (*Stream, error)
}

// resolveLinks tries each link of event in order and returns the first stream.
func resolveLinks(ctx context.Context, resolver *Resolver, event Event, mode BrowserMode) (*Stream, error) {
	if len(event.Links) == 0 {
		return nil, fmt.Errorf("%s: no links", event.Slug)
	}

	var lastErr error
	for _, link := range event.Links {
		stream, err := resolver.Resolve(ctx, Request{
			Key:     event.cacheKey(),
			URL:     link.URL,
			Referer: link.Referer,
			Browser: mode,
		})
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s: %w", event.Slug, lastErr)
}
