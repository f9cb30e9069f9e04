package proxylist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		ok       bool
		host     string
		port     int
		wantType string
	}{
		{"1.2.3.4:8080", true, "1.2.3.4", 8080, "http"},
		{"  socks5://5.6.7.8:1080  ", true, "5.6.7.8", 1080, "socks5"},
		{"HTTPS://proxy.example.com:443", true, "proxy.example.com", 443, "https"},
		{"9.9.9.9:3128 US elite", true, "9.9.9.9", 3128, "http"},
		{"# comment", false, "", 0, ""},
		{"", false, "", 0, ""},
		{"user:pass@1.2.3.4:8080", false, "", 0, ""},
		{"ftp://1.2.3.4:21", false, "", 0, ""},
		{"1.2.3.4", false, "", 0, ""},
		{"1.2.3.4:notaport", false, "", 0, ""},
		{"1.2.3.4:70000", false, "", 0, ""},
		{"[::1]:80:1", false, "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			proxy, ok := ParseLine(tt.line, "http")
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.host, proxy.Host)
			assert.Equal(t, tt.port, proxy.Port)
			assert.Equal(t, tt.wantType, proxy.Type)
		})
	}
}

func TestProxyURL(t *testing.T) {
	assert.Equal(t, "http://1.2.3.4:8080", Proxy{Host: "1.2.3.4", Port: 8080, Type: "https"}.String())
	assert.Equal(t, "socks5://1.2.3.4:1080", Proxy{Host: "1.2.3.4", Port: 1080, Type: "socks4"}.String())
	assert.True(t, Proxy{Type: "socks5"}.IsSOCKS())
	assert.False(t, Proxy{Type: "http"}.IsSOCKS())
}

func TestParseList(t *testing.T) {
	body := "1.1.1.1:80\n\n# skip\nsocks4://2.2.2.2:1080\nbroken\n"
	proxies, err := ParseList(strings.NewReader(body), "https")
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, "https", proxies[0].Type)
	assert.Equal(t, "socks4", proxies[1].Type)
}

func TestTextSourceLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "scout-test-agent", r.Header.Get("User-Agent"))
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("http://10.0.0.1:8080\nsocks5://10.0.0.2:1080\n"))
	}))
	defer server.Close()

	source := NewURLSource("custom", []string{server.URL + "/down", server.URL + "/list"}, SourceConfig{UserAgent: "scout-test-agent"})
	proxies, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, proxies, 2)
	assert.Equal(t, "custom", source.Name())
}

func TestTextSourceAllListsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewURLSource("custom", []string{server.URL}, SourceConfig{}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestTypeFromURL(t *testing.T) {
	assert.Equal(t, "socks5", typeFromURL("https://x.example/api?type=socks5"))
	assert.Equal(t, "http", typeFromURL("https://x.example/api?type=weird"))
	assert.Equal(t, "http", typeFromURL("https://x.example/list.txt"))
}

func TestGeonodeSourceLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"ip":"3.3.3.3","port":"3128","protocols":["http","socks5"],"country":"DE"},
			{"ip":"4.4.4.4","port":"bad","protocols":["http"]},
			{"ip":"5.5.5.5","port":"80","protocols":["quic"]}
		],"total":3}`))
	}))
	defer server.Close()

	source := NewGeonodeSource(SourceConfig{})
	source.apiURL = server.URL

	proxies, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, "DE", proxies[0].Country)
	assert.Equal(t, "socks5", proxies[1].Type)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("7.7.7.7:8080\n"), 0o644))

	proxies, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 1)

	_, err = NewFileSource(filepath.Join(t.TempDir(), "nope.txt")).Load(context.Background())
	assert.Error(t, err)
}

type staticSource struct {
	name    string
	proxies []Proxy
	err     error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Load(context.Context) ([]Proxy, error) { return s.proxies, s.err }

func TestMultiSourceDeduplicates(t *testing.T) {
	multi := NewMultiSource(
		staticSource{name: "a", proxies: []Proxy{{Host: "1.1.1.1", Port: 80}, {Host: "2.2.2.2", Port: 80}}},
		staticSource{name: "broken", err: errors.New("boom")},
		staticSource{name: "b", proxies: []Proxy{{Host: "2.2.2.2", Port: 80}, {Host: "3.3.3.3", Port: 80}}},
	)

	proxies, err := multi.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, proxies, 3)
}

func TestMultiSourceEmpty(t *testing.T) {
	_, err := NewMultiSource(staticSource{name: "broken", err: errors.New("boom")}).LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrNoProxies)
}

func TestNewMultiSourceWithConfig(t *testing.T) {
	multi := NewMultiSourceWithConfig(SourceConfig{
		Sources: []string{"proxyscrape", "file", "geonode", "unknown"},
		File:    "proxies.txt",
	})

	var names []string
	for _, source := range multi.Sources() {
		names = append(names, source.Name())
	}
	assert.Equal(t, []string{"proxyscrape", "file", "geonode"}, names)

	fileOnly := NewMultiSourceWithConfig(SourceConfig{File: "proxies.txt"})
	require.Len(t, fileOnly.Sources(), 1)
	assert.Equal(t, "file", fileOnly.Sources()[0].Name())
}
