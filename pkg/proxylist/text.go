package proxylist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"streamscout/internal/logger"
)

// TextSource downloads plain-text proxy lists, one proxy per line.
type TextSource struct {
	name      string
	urls      []string
	client    *http.Client
	userAgent string
	logger    *logger.Logger
}

func newTextSource(name string, urls []string, config SourceConfig) *TextSource {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TextSource{
		name:      name,
		urls:      urls,
		client:    &http.Client{Timeout: timeout},
		userAgent: config.UserAgent,
		logger:    logger.New(name),
	}
}

// NewProxyScrapeSource reads the proxyscrape v4 protocol-prefixed list.
func NewProxyScrapeSource(config SourceConfig) *TextSource {
	return newTextSource("proxyscrape", []string{
		"https://api.proxyscrape.com/v4/free-proxy-list/get?request=get_proxies&proxy_format=protocolipport&format=text",
	}, config)
}

func NewGitHubSource(config SourceConfig) *TextSource {
	return newTextSource("github", []string{
		"https://raw.githubusercontent.com/proxifly/free-proxy-list/refs/heads/main/proxies/all/data.txt",
	}, config)
}

func NewProxyListOrgSource(config SourceConfig) *TextSource {
	return newTextSource("proxylistorg", []string{
		"https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt",
		"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	}, config)
}

func NewFreeProxyListSource(config SourceConfig) *TextSource {
	return newTextSource("freeproxylist", []string{
		"https://www.proxy-list.download/api/v1/get?type=http",
		"https://www.proxy-list.download/api/v1/get?type=https",
		"https://www.proxy-list.download/api/v1/get?type=socks4",
		"https://www.proxy-list.download/api/v1/get?type=socks5",
	}, config)
}

// NewURLSource reads arbitrary list URLs, mostly useful for self-hosted lists.
func NewURLSource(name string, urls []string, config SourceConfig) *TextSource {
	return newTextSource(name, urls, config)
}

func (t *TextSource) Name() string {
	return t.name
}

func (t *TextSource) Load(ctx context.Context) ([]Proxy, error) {
	var all []Proxy
	var lastErr error

	for _, listURL := range t.urls {
		proxies, err := t.loadURL(ctx, listURL)
		if err != nil {
			t.logger.WarnBg("List %s failed: %v", listURL, err)
			lastErr = err
			continue
		}
		all = append(all, proxies...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, fmt.Errorf("%s: %w", t.name, lastErr)
	}

	t.logger.InfoBg("Collected %d proxies from %d lists", len(all), len(t.urls))
	return all, nil
}

func (t *TextSource) loadURL(ctx context.Context, listURL string) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return ParseList(resp.Body, typeFromURL(listURL))
}

// FileSource reads a local proxy list.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Load(_ context.Context) ([]Proxy, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy file: %w", err)
	}
	defer file.Close()

	return ParseList(file, "http")
}

// ParseList parses a newline separated proxy list, skipping lines ParseLine rejects.
func ParseList(reader io.Reader, defaultType string) ([]Proxy, error) {
	var proxies []Proxy
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		if proxy, ok := ParseLine(scanner.Text(), defaultType); ok {
			proxies = append(proxies, proxy)
		}
	}

	return proxies, scanner.Err()
}

func typeFromURL(listURL string) string {
	u, err := url.Parse(listURL)
	if err != nil {
		return "http"
	}

	switch proxyType := u.Query().Get("type"); proxyType {
	case "https", "socks4", "socks5":
		return proxyType
	default:
		return "http"
	}
}
