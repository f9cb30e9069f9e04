package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"streamscout/internal/cache"
	"streamscout/internal/logger"
	"streamscout/pkg/browser"
	"streamscout/pkg/extract"
	"streamscout/pkg/fetch"
)

// BrowserMode says when the resolver may load a page in the browser.
type BrowserMode int

const (
	// BrowserFallback tries static extraction first.
	BrowserFallback BrowserMode = iota
	// BrowserFirst captures in the browser and falls back to static extraction.
	BrowserFirst
	// BrowserOff never uses the browser.
	BrowserOff
)

// Capturer is implemented by *browser.Pool.
type Capturer interface {
	Capture(ctx context.Context, embedURL string, opts browser.Options) (*browser.Result, error)
}

type Request struct {
	Key     string
	URL     string
	Referer string
	Browser BrowserMode
}

type ResolverConfig struct {
	CacheTTL       time.Duration
	MaxIframeDepth int
	UserAgent      string
}

// Resolver turns embed pages into streams: cache, then static extraction
// following iframes, then browser capture.
type Resolver struct {
	getter   fetch.Getter
	capturer Capturer
	cache    cache.Cache
	config   ResolverConfig
	logger   *logger.Logger
}

// NewResolver wires the chain. capturer and streamCache may be nil.
func NewResolver(getter fetch.Getter, capturer Capturer, streamCache cache.Cache, config ResolverConfig) *Resolver {
	if config.MaxIframeDepth < 0 {
		config.MaxIframeDepth = 0
	}
	return &Resolver{
		getter:   getter,
		capturer: capturer,
		cache:    streamCache,
		config:   config,
		logger:   logger.New("resolver"),
	}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (*Stream, error) {
	id := logger.GenerateID()

	if r.cache != nil && req.Key != "" {
		cached, err := r.cache.Get(ctx, req.Key)
		if err != nil {
			r.logger.Warn(id, "Cache lookup for %s failed: %v", req.Key, err)
		} else if cached != nil {
			r.logger.Debug(id, "Cache hit for %s", req.Key)
			return cached, nil
		}
	}

	stream, err := r.resolve(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && req.Key != "" && r.config.CacheTTL > 0 {
		if err := r.cache.Set(ctx, req.Key, *stream, r.config.CacheTTL); err != nil {
			r.logger.Warn(id, "Failed to cache %s: %v", req.Key, err)
		}
	}
	return stream, nil
}

func (r *Resolver) resolve(ctx context.Context, id string, req Request) (*Stream, error) {
	steps := []func() (*Stream, error){
		func() (*Stream, error) { return r.static(ctx, req.URL, req.Referer, 0) },
	}
	if r.capturer != nil && req.Browser != BrowserOff {
		capture := func() (*Stream, error) { return r.capture(ctx, req) }
		if req.Browser == BrowserFirst {
			steps = append([]func() (*Stream, error){capture}, steps...)
		} else {
			steps = append(steps, capture)
		}
	}

	var lastErr error
	for _, step := range steps {
		stream, err := step()
		if err == nil {
			r.logger.Info(id, "Resolved %s -> %s", req.URL, stream.URL)
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, browser.ErrDisabled) {
			r.logger.Debug(id, "%s: %v", req.URL, err)
			lastErr = err
		}
	}
	if lastErr == nil || !errors.Is(lastErr, extract.ErrNoStream) {
		lastErr = fmt.Errorf("%w: %s: %v", extract.ErrNoStream, req.URL, lastErr)
	}
	return nil, lastErr
}

// static fetches pageURL, looks for manifests in the deobfuscated body and
// descends into iframes up to MaxIframeDepth.
func (r *Resolver) static(ctx context.Context, pageURL, referer string, depth int) (*Stream, error) {
	resp, err := r.getter.Get(ctx, pageURL, fetch.Options{
		Referer:   referer,
		Origin:    originOf(referer),
		UserAgent: r.config.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	body := resp.Text()
	text := extract.Deobfuscate(body)

	var urls []string
	for _, candidate := range extract.FindStreams(text) {
		if absolute, err := extract.Resolve(resp.URL, candidate); err == nil {
			urls = append(urls, absolute)
		}
	}
	if best, ok := extract.Best(urls); ok {
		return &Stream{
			URL:       best,
			Referer:   resp.URL,
			Origin:    originOf(resp.URL),
			UserAgent: r.config.UserAgent,
		}, nil
	}

	if depth < r.config.MaxIframeDepth {
		for _, frame := range extract.FindIframes(text, resp.URL) {
			if frame == pageURL {
				continue
			}
			stream, err := r.static(ctx, frame, resp.URL, depth+1)
			if err == nil {
				return stream, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", extract.ErrNoStream, pageURL)
}

func (r *Resolver) capture(ctx context.Context, req Request) (*Stream, error) {
	result, err := r.capturer.Capture(ctx, req.URL, browser.Options{
		Referer:   req.Referer,
		UserAgent: r.config.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	return &Stream{
		URL:       result.URL,
		Referer:   result.Referer,
		Origin:    result.Origin,
		UserAgent: result.UserAgent,
	}, nil
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
