package proxylist

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Proxy struct {
	Host     string
	Port     int
	Type     string
	Country  string
	LastSeen time.Time
}

func (p Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Scheme is the URL scheme a client dials the proxy with. HTTPS proxies are
// reached over plain HTTP CONNECT, and SOCKS4 lists are served by SOCKS5 dialers.
func (p Proxy) Scheme() string {
	switch p.Type {
	case "socks4", "socks5":
		return "socks5"
	default:
		return "http"
	}
}

func (p Proxy) URL() *url.URL {
	return &url.URL{Scheme: p.Scheme(), Host: p.Address()}
}

func (p Proxy) String() string {
	return p.URL().String()
}

func (p Proxy) IsSOCKS() bool {
	return p.Type == "socks4" || p.Type == "socks5"
}

// Source loads a list of proxies from one place.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Proxy, error)
}

type SourceConfig struct {
	Timeout   time.Duration
	UserAgent string
	Sources   []string
	File      string
}

// ParseLine parses one proxy list line. Accepted forms are "host:port" and
// "scheme://host:port", optionally followed by whitespace-separated columns.
// Blank lines, comments and credentials are rejected.
func ParseLine(line, defaultType string) (Proxy, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Proxy{}, false
	}
	if fields := strings.Fields(line); len(fields) > 1 {
		line = fields[0]
	}
	if strings.Contains(line, "@") {
		return Proxy{}, false
	}

	proxyType := defaultType
	if scheme, rest, found := strings.Cut(line, "://"); found {
		proxyType = strings.ToLower(scheme)
		line = rest
	}
	switch proxyType {
	case "http", "https", "socks4", "socks5":
	default:
		return Proxy{}, false
	}

	host, portStr, found := strings.Cut(strings.TrimSuffix(line, "/"), ":")
	if !found || host == "" || strings.Contains(portStr, ":") {
		return Proxy{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Proxy{}, false
	}

	return Proxy{
		Host:     host,
		Port:     port,
		Type:     proxyType,
		LastSeen: time.Now(),
	}, true
}
