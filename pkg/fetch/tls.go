package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Danny-Dasilva/CycleTLS/cycletls"
	"github.com/PuerkitoBio/goquery"

	"streamscout/internal/logger"
	"streamscout/pkg/manager"
	"streamscout/pkg/proxylist"
)

// chromeJA3 is the Chrome 122 fingerprint sent by the TLS fetcher.
const chromeJA3 = "771,4865-4866-4867-49195-49199-49196-49200-52393-52392-49171-49172-156-157-47-53,0-23-65281-10-11-35-16-5-13-18-51-45-43-27-17513,29-23-24,0"

// TLSFetcher sends requests with a browser TLS fingerprint for sites that
// block Go's default ClientHello. It shares the proxy rotation of Fetcher.
type TLSFetcher struct {
	client   cycletls.CycleTLS
	config   Config
	proxies  manager.ProxyManager
	ja3      string
	limiters *hostLimiters
	logger   *logger.Logger
}

func NewTLSFetcher(config Config, proxies manager.ProxyManager) *TLSFetcher {
	config = withDefaults(config)
	return &TLSFetcher{
		client:   cycletls.Init(),
		config:   config,
		proxies:  proxies,
		ja3:      chromeJA3,
		limiters: newHostLimiters(config.RatePerSecond),
		logger:   logger.New("tls"),
	}
}

func (f *TLSFetcher) Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
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
		return f.do(ctx, rawURL, f.options(opts, proxy), proxy)
	})
}

func (f *TLSFetcher) Document(ctx context.Context, rawURL string, opts Options) (*goquery.Document, error) {
	return Document(ctx, f, rawURL, opts)
}

func (f *TLSFetcher) Close() {
	f.client.Close()
}

func (f *TLSFetcher) options(opts Options, proxy *proxylist.Proxy) cycletls.Options {
	headers := requestHeaders(f.config.UserAgent, opts)
	userAgent := headers["User-Agent"]
	delete(headers, "User-Agent")

	options := cycletls.Options{
		Body:      "",
		Ja3:       f.ja3,
		UserAgent: userAgent,
		Headers:   headers,
		Timeout:   int(f.config.Timeout / time.Second),
	}
	if options.Timeout <= 0 {
		options.Timeout = 1
	}
	if proxy != nil {
		options.Proxy = proxy.URL().String()
	}
	return options
}

func (f *TLSFetcher) do(ctx context.Context, rawURL string, options cycletls.Options, proxy *proxylist.Proxy) (*Response, error) {
	type result struct {
		resp cycletls.Response
		err  error
	}

	done := make(chan result, 1)
	go func() {
		resp, err := f.client.Do(rawURL, options, "GET")
		done <- result{resp: resp, err: err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.resp.Status < 200 || r.resp.Status >= 300 {
		return nil, &StatusError{Code: r.resp.Status}
	}

	via := "direct"
	if proxy != nil {
		via = proxy.Address()
	}
	return &Response{
		Body:   []byte(r.resp.Body),
		URL:    rawURL,
		Status: r.resp.Status,
		Via:    via,
	}, nil
}
