package proxylist

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	netproxy "golang.org/x/net/proxy"
)

// Transport returns a single-use transport that sends every request through p.
// HTTP and HTTPS proxies go through http.ProxyURL, SOCKS proxies through a
// SOCKS5 dialer.
func Transport(p Proxy, dialTimeout time.Duration) (*http.Transport, error) {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	base := &net.Dialer{Timeout: dialTimeout}
	transport := &http.Transport{
		DialContext: base.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		IdleConnTimeout:       1 * time.Second,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: 2 * dialTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if !p.IsSOCKS() {
		transport.Proxy = http.ProxyURL(p.URL())
		return transport, nil
	}

	dialer, err := netproxy.SOCKS5("tcp", p.Address(), nil, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
	}
	if contextDialer, ok := dialer.(netproxy.ContextDialer); ok {
		transport.DialContext = contextDialer.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	return transport, nil
}
