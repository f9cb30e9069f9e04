package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/multierr"
	"go.uber.org/ratelimit"

	"streamscout/internal/logger"
	"streamscout/pkg/manager"
	"streamscout/pkg/proxylist"
)

// ErrAllAttemptsFailed is returned when every proxy attempt and the optional
// direct request failed.
var ErrAllAttemptsFailed = errors.New("all fetch attempts failed")

const maxBodySize = 10 << 20

// Getter is implemented by Fetcher and TLSFetcher
type Getter interface {
	Get(ctx context.Context, rawURL string, opts Options) (*Response, error)
}

// Options are per-request headers. NoProxy skips rotation and goes direct.
type Options struct {
	Referer   string
	Origin    string
	UserAgent string
	Headers   map[string]string
	NoProxy   bool
}

type Response struct {
	Body   []byte
	URL    string
	Status int
	Via    string // proxy address, or "direct"
}

func (r *Response) Text() string {
	return string(r.Body)
}

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

type Config struct {
	Timeout        time.Duration
	UserAgent      string
	MaxRetries     int
	RatePerSecond  int
	DirectFallback bool
}

// Fetcher performs GET requests through the proxy pool with a direct fallback.
type Fetcher struct {
	config   Config
	proxies  manager.ProxyManager
	direct   *http.Client
	limiters *hostLimiters
	logger   *logger.Logger
}

// New creates a fetcher. proxies may be nil, in which case every request is direct.
func New(config Config, proxies manager.ProxyManager) *Fetcher {
	config = withDefaults(config)
	return &Fetcher{
		config:   config,
		proxies:  proxies,
		direct:   &http.Client{Timeout: config.Timeout},
		limiters: newHostLimiters(config.RatePerSecond),
		logger:   logger.New("fetch"),
	}
}

func withDefaults(config Config) Config {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	return config
}

func (f *Fetcher) Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	return rotate(ctx, rotation{
		proxies:    f.proxies,
		maxRetries: f.config.MaxRetries,
		direct:     f.config.DirectFallback || opts.NoProxy,
		noProxy:    opts.NoProxy,
		logger:     f.logger,
	}, rawURL, func(proxy *proxylist.Proxy) (*Response, error) {
		f.limiters.take(u.Host)

		client := f.direct
		via := "direct"
		if proxy != nil {
			transport, err := proxylist.Transport(*proxy, f.config.Timeout)
			if err != nil {
				return nil, err
			}
			client = &http.Client{Transport: transport, Timeout: f.config.Timeout}
			via = proxy.Address()
		}
		return f.do(ctx, client, rawURL, opts, via)
	})
}

// Document fetches rawURL and parses it with goquery.
func (f *Fetcher) Document(ctx context.Context, rawURL string, opts Options) (*goquery.Document, error) {
	return Document(ctx, f, rawURL, opts)
}

func Document(ctx context.Context, getter Getter, rawURL string, opts Options) (*goquery.Document, error) {
	resp, err := getter.Get(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	if base, err := url.Parse(resp.URL); err == nil {
		doc.Url = base
	}
	return doc, nil
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, rawURL string, opts Options, via string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range requestHeaders(f.config.UserAgent, opts) {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Response{
		Body:   body,
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Via:    via,
	}, nil
}

func requestHeaders(defaultUA string, opts Options) map[string]string {
	headers := map[string]string{
		"User-Agent":      defaultUA,
		"Accept":          "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9,it;q=0.8",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	if opts.Referer != "" {
		headers["Referer"] = opts.Referer
	}
	if opts.Origin != "" {
		headers["Origin"] = opts.Origin
	}
	for key, value := range opts.Headers {
		headers[key] = value
	}
	return headers
}

type rotation struct {
	proxies    manager.ProxyManager
	maxRetries int
	direct     bool
	noProxy    bool
	logger     *logger.Logger
}

// rotate tries up to maxRetries proxies, reporting each outcome to the
// manager, then one direct attempt when allowed. A nil proxy means direct.
func rotate(ctx context.Context, r rotation, rawURL string, attempt func(proxy *proxylist.Proxy) (*Response, error)) (*Response, error) {
	var errs error

	if r.proxies != nil && !r.noProxy {
		for i := 0; i < r.maxRetries; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			proxy, err := r.proxies.Next()
			if err != nil {
				break
			}

			resp, err := attempt(&proxy)
			if err == nil {
				r.proxies.ReportSuccess(proxy)
				return resp, nil
			}

			r.logger.DebugBg("Attempt %d for %s via %s failed: %v", i+1, rawURL, proxy.Address(), err)
			r.proxies.ReportFailure(proxy)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", proxy.Address(), err))
		}
	}

	if r.direct || r.proxies == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := attempt(nil)
		if err == nil {
			return resp, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("direct: %w", err))
	}

	if errs == nil {
		errs = manager.ErrNoHealthyProxies
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrAllAttemptsFailed, rawURL, errs)
}

// hostLimiters hands out one limiter per host.
type hostLimiters struct {
	rate     int
	limiters map[string]ratelimit.Limiter
	mu       sync.Mutex
}

func newHostLimiters(rate int) *hostLimiters {
	return &hostLimiters{
		rate:     rate,
		limiters: make(map[string]ratelimit.Limiter),
	}
}

func (h *hostLimiters) take(host string) {
	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		if h.rate > 0 {
			limiter = ratelimit.New(h.rate)
		} else {
			limiter = ratelimit.NewUnlimited()
		}
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	limiter.Take()
}
