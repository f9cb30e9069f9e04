package proxylist

import (
	"context"
	"errors"

	"streamscout/internal/logger"
)

// ErrNoProxies is returned when every configured source came back empty.
var ErrNoProxies = errors.New("no proxies loaded")

type MultiSource struct {
	sources []Source
	logger  *logger.Logger
}

func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{
		sources: sources,
		logger:  logger.New("proxies"),
	}
}

// NewMultiSourceWithConfig builds the sources named in config. A configured
// file is always loaded, even when "file" is not listed.
func NewMultiSourceWithConfig(config SourceConfig) *MultiSource {
	var sources []Source
	fileAdded := false

	addFile := func() {
		if config.File != "" && !fileAdded {
			sources = append(sources, NewFileSource(config.File))
			fileAdded = true
		}
	}

	for _, source := range config.Sources {
		switch source {
		case "file":
			addFile()
		case "proxyscrape":
			sources = append(sources, NewProxyScrapeSource(config))
		case "geonode":
			sources = append(sources, NewGeonodeSource(config))
		case "github":
			sources = append(sources, NewGitHubSource(config))
		case "proxylistorg":
			sources = append(sources, NewProxyListOrgSource(config))
		case "freeproxylist":
			sources = append(sources, NewFreeProxyListSource(config))
		}
	}
	addFile()

	return NewMultiSource(sources...)
}

func (m *MultiSource) Sources() []Source {
	return m.sources
}

// LoadAll loads every source in order and deduplicates by address. A failing
// source is logged and skipped; ErrNoProxies is returned only if nothing loaded.
func (m *MultiSource) LoadAll(ctx context.Context) ([]Proxy, error) {
	var allProxies []Proxy
	seen := make(map[string]bool)

	for _, source := range m.sources {
		if ctx.Err() != nil {
			return allProxies, ctx.Err()
		}

		proxies, err := source.Load(ctx)
		if err != nil {
			m.logger.WarnBg("Source %s failed: %v", source.Name(), err)
			continue
		}

		uniqueCount := 0
		for _, proxy := range proxies {
			key := proxy.Address()
			if !seen[key] {
				seen[key] = true
				allProxies = append(allProxies, proxy)
				uniqueCount++
			}
		}

		m.logger.InfoBg("Source %s: %d total, %d unique", source.Name(), len(proxies), uniqueCount)
	}

	if len(allProxies) == 0 {
		return nil, ErrNoProxies
	}

	m.logger.InfoBg("Total unique proxies loaded: %d", len(allProxies))
	return allProxies, nil
}
