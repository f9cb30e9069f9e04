package sites

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"streamscout/internal/config"
	"streamscout/internal/logger"
	"streamscout/pkg/fetch"
	"streamscout/pkg/manager"
	"streamscout/pkg/schedule"
)

// MultiSite collects events from several sites and routes resolution back to
// the site an event came from.
type MultiSite struct {
	sites  []Site
	byName map[string]Site
	logger *logger.Logger
}

func NewMultiSite(sites ...Site) *MultiSite {
	byName := make(map[string]Site, len(sites))
	for _, site := range sites {
		byName[site.Name()] = site
	}
	return &MultiSite{
		sites:  sites,
		byName: byName,
		logger: logger.New("sites"),
	}
}

// Deps are the shared clients adapters are built on.
type Deps struct {
	Fetcher    fetch.Getter
	TLSFetcher fetch.Getter
	Resolver   *Resolver
	Proxies    manager.ProxyManager
	Dictionary *schedule.Dictionary
}

// NewMultiSiteWithConfig builds the enabled adapters. only, when non-empty,
// further restricts them by name; generic sites match either "generic" or
// their own name.
func NewMultiSiteWithConfig(cfg *config.Config, deps Deps, only []string) (*MultiSite, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(strings.TrimSpace(name))] = true
	}
	allowed := func(names ...string) bool {
		if len(wanted) == 0 {
			return true
		}
		for _, name := range names {
			if wanted[strings.ToLower(name)] {
				return true
			}
		}
		return false
	}

	if deps.Dictionary == nil {
		deps.Dictionary = schedule.DefaultDictionary()
	}
	tlsFetcher := deps.TLSFetcher
	if tlsFetcher == nil {
		tlsFetcher = deps.Fetcher
	}

	var sites []Site
	for _, name := range cfg.Sites.Enabled {
		switch name {
		case "hattrick":
			if !allowed(name) {
				continue
			}
			sites = append(sites, NewHattrick(tlsFetcher, deps.Resolver, HattrickConfig{
				BaseURL: cfg.Sites.Hattrick.BaseURL,
				Group:   cfg.Sites.Hattrick.Group,
				Logo:    cfg.Sites.Hattrick.Logo,
				Rules:   deps.Dictionary.Channels,
			}))
		case "daddylive":
			if !allowed(name) {
				continue
			}
			loc, err := schedule.LoadLocation(cfg.Sites.Daddylive.Timezone)
			if err != nil {
				return nil, err
			}
			sites = append(sites, NewDaddylive(deps.Fetcher, deps.Resolver, DaddyliveConfig{
				BaseURL:      cfg.Sites.Daddylive.BaseURL,
				SchedulePath: cfg.Sites.Daddylive.SchedulePath,
				EmbedPath:    cfg.Sites.Daddylive.EmbedPath,
				Location:     loc,
				Categories:   cfg.Sites.Daddylive.Categories,
				Dictionary:   deps.Dictionary,
			}))
		case "agenda":
			if !allowed(name) {
				continue
			}
			loc, err := schedule.LoadLocation(cfg.Sites.Agenda.Timezone)
			if err != nil {
				return nil, err
			}
			sites = append(sites, NewAgenda(deps.Resolver, deps.Proxies, AgendaConfig{
				URL:         cfg.Sites.Agenda.URL,
				RowSelector: cfg.Sites.Agenda.RowSelector,
				Location:    loc,
				UserAgent:   cfg.Fetch.UserAgent,
				Timeout:     cfg.Fetch.Timeout,
				MaxRetries:  cfg.Fetch.MaxRetries,
				Dictionary:  deps.Dictionary,
			}))
		case "generic":
			for _, site := range cfg.Sites.Generic {
				if !allowed(name, site.Name) {
					continue
				}
				loc, err := schedule.LoadLocation(site.Timezone)
				if err != nil {
					return nil, err
				}
				sites = append(sites, NewGeneric(deps.Fetcher, deps.Resolver, GenericConfig{
					Name:          site.Name,
					URL:           site.URL,
					ItemSelector:  site.ItemSelector,
					TitleSelector: site.TitleSelector,
					TimeSelector:  site.TimeSelector,
					TimeLayout:    site.TimeLayout,
					Location:      loc,
					LinkSelector:  site.LinkSelector,
					LinkAttr:      site.LinkAttr,
					LogoSelector:  site.LogoSelector,
					Group:         site.Group,
					Browser:       site.Browser,
				}))
			}
		}
	}

	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites enabled (enabled: %v, filter: %v)", cfg.Sites.Enabled, only)
	}
	return NewMultiSite(sites...), nil
}

func (m *MultiSite) Name() string {
	return "multi"
}

func (m *MultiSite) Sites() []Site {
	return m.sites
}

// Events queries every site concurrently. Events from sites that succeeded are
// returned even when others failed; err joins the failures. The first event
// seen for a slug wins.
func (m *MultiSite) Events(ctx context.Context) ([]Event, error) {
	results := make([][]Event, len(m.sites))
	errs := make([]error, len(m.sites))

	var wg conc.WaitGroup
	for i, site := range m.sites {
		wg.Go(func() {
			results[i], errs[i] = site.Events(ctx)
		})
	}
	wg.Wait()

	var allEvents []Event
	var err error
	seen := make(map[string]bool)
	for i, site := range m.sites {
		if errs[i] != nil {
			m.logger.WarnBg("Site %s failed: %v", site.Name(), errs[i])
			err = multierr.Append(err, errs[i])
			continue
		}

		unique := 0
		for _, event := range results[i] {
			if event.Slug == "" || seen[event.Slug] {
				continue
			}
			seen[event.Slug] = true
			allEvents = append(allEvents, event)
			unique++
		}
		m.logger.InfoBg("Site %s: %d total, %d unique", site.Name(), len(results[i]), unique)
	}

	m.logger.InfoBg("Total unique events collected: %d", len(allEvents))
	return allEvents, err
}

func (m *MultiSite) Resolve(ctx context.Context, event Event) (*Stream, error) {
	site, ok := m.byName[event.Site]
	if !ok {
		return nil, fmt.Errorf("unknown site %q for %s", event.Site, event.Slug)
	}
	return site.Resolve(ctx, event)
}
