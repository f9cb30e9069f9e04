package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"streamscout/internal/logger"
	"streamscout/pkg/extract"
	"streamscout/pkg/manager"
)

// ErrDisabled is returned by a nil or disabled pool. Callers fall back to
// static extraction.
var ErrDisabled = errors.New("browser capture disabled")

const defaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15"

type Config struct {
	Enabled   bool
	PoolSize  int
	Timeout   time.Duration
	Wait      time.Duration
	Headless  bool
	UseProxy  bool
	UserAgent string
}

type Options struct {
	Referer   string
	UserAgent string
}

// Result is the captured stream and the headers its request carried.
type Result struct {
	URL        string
	Referer    string
	Origin     string
	UserAgent  string
	Candidates []string
}

// Pool is a round-robin set of Chromium instances.
type Pool struct {
	pw       *playwright.Playwright
	browsers []playwright.Browser
	proxies  manager.ProxyManager
	config   Config
	mu       sync.Mutex
	index    int
	logger   *logger.Logger
}

// NewPool launches config.PoolSize browsers. proxies is only used when
// config.UseProxy is set and may be nil.
func NewPool(config Config, proxies manager.ProxyManager) (*Pool, error) {
	if !config.Enabled {
		return nil, ErrDisabled
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Wait <= 0 {
		config.Wait = 8 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	pool := &Pool{
		pw:       pw,
		browsers: make([]playwright.Browser, config.PoolSize),
		proxies:  proxies,
		config:   config,
		logger:   logger.New("browser"),
	}

	for i := 0; i < config.PoolSize; i++ {
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(config.Headless),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--disable-dev-shm-usage",
				"--no-sandbox",
			},
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to launch chromium: %w", err)
		}
		pool.browsers[i] = browser
	}

	pool.logger.InfoBg("Started %d browsers", config.PoolSize)
	return pool, nil
}

func (p *Pool) next() playwright.Browser {
	p.mu.Lock()
	defer p.mu.Unlock()
	browser := p.browsers[p.index]
	p.index = (p.index + 1) % len(p.browsers)
	return browser
}

// Capture loads embedURL and records every request that looks like a stream.
// It returns as soon as an .m3u8 request is seen, otherwise after the wait
// window, when frame URLs are inspected as well.
func (p *Pool) Capture(ctx context.Context, embedURL string, opts Options) (*Result, error) {
	if p == nil {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = p.config.UserAgent
	}

	contextOptions := playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
	}
	if opts.Referer != "" {
		contextOptions.ExtraHttpHeaders = map[string]string{"Referer": opts.Referer}
	}
	if p.config.UseProxy && p.proxies != nil {
		if proxy, err := p.proxies.Random(); err == nil {
			contextOptions.Proxy = &playwright.Proxy{Server: proxy.URL().String()}
		}
	}

	bctx, err := p.next().NewContext(contextOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	c := newCollector()
	err = bctx.Route("**/*", func(route playwright.Route) {
		request := route.Request()
		switch request.ResourceType() {
		case "image", "font", "media":
			if !extract.IsPotentialStream(request.URL()) {
				route.Abort()
				return
			}
		}
		c.add(request.URL(), request.Headers()["referer"])
		route.Continue()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to route requests: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(embedURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(p.config.Timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		p.logger.DebugBg("Navigation to %s ended with: %v", embedURL, err)
	}

	select {
	case <-c.found:
	case <-time.After(p.config.Wait):
		for _, frame := range page.Frames() {
			frameURL := frame.URL()
			if frameURL == "" || frameURL == "about:blank" || !extract.IsPotentialStream(frameURL) {
				continue
			}
			if streamURL, err := extract.TokenManifest(frameURL); err == nil {
				c.add(streamURL, frameURL)
			}
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, ok := c.best()
	if !ok {
		return nil, fmt.Errorf("%w: %s", extract.ErrNoStream, embedURL)
	}
	result.UserAgent = userAgent
	if result.Referer == "" {
		result.Referer = embedURL
	}
	result.Origin = originOf(result.Referer)
	return result, nil
}

func (p *Pool) Close() {
	if p == nil {
		return
	}
	for _, browser := range p.browsers {
		if browser != nil {
			browser.Close()
		}
	}
	if p.pw != nil {
		p.pw.Stop()
	}
}

// collector keeps captured stream candidates with the referer each was
// requested from.
type collector struct {
	mu       sync.Mutex
	urls     []string
	referers map[string]string
	found    chan struct{}
}

func newCollector() *collector {
	return &collector{
		referers: make(map[string]string),
		found:    make(chan struct{}, 1),
	}
}

func (c *collector) add(rawURL, referer string) {
	if !extract.IsPotentialStream(rawURL) {
		return
	}

	c.mu.Lock()
	if _, ok := c.referers[rawURL]; !ok {
		c.urls = append(c.urls, rawURL)
		c.referers[rawURL] = referer
	}
	c.mu.Unlock()

	if strings.Contains(strings.ToLower(rawURL), ".m3u8") {
		select {
		case c.found <- struct{}{}:
		default:
		}
	}
}

func (c *collector) best() (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	best, ok := extract.Best(c.urls)
	if !ok {
		return nil, false
	}
	return &Result{
		URL:        best,
		Referer:    c.referers[best],
		Candidates: append([]string(nil), c.urls...),
	}, true
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
