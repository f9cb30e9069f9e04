package manager

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"streamscout/internal/database"
	"streamscout/internal/logger"
	"streamscout/pkg/checker"
	"streamscout/pkg/proxylist"
)

// ErrNoHealthyProxies is returned when the pool is empty. Callers that allow a
// direct connection treat it as "go direct", not as a failure.
var ErrNoHealthyProxies = errors.New("no healthy proxies available")

// ProxyManager is the rotation interface the fetchers depend on
type ProxyManager interface {
	Next() (proxylist.Proxy, error)
	Random() (proxylist.Proxy, error)
	ReportFailure(proxylist.Proxy)
	ReportSuccess(proxylist.Proxy)
	Stats() Stats
}

type Stats struct {
	TotalProxies int            `json:"total_proxies"`
	TypeCount    map[string]int `json:"proxy_types"`
	CountryCount map[string]int `json:"proxy_countries"`
	Failures     int            `json:"failures_reported"`
	Removed      int            `json:"removed"`
	LastRefresh  time.Time      `json:"last_refresh"`
}

type Config struct {
	Sources        proxylist.SourceConfig
	Checker        checker.Config
	Check          bool
	MaxFailures    int
	CheckInterval  time.Duration
	RefreshTimeout time.Duration
}

// Pool is a round-robin list of proxies that drops a proxy after maxFails
// consecutive failures.
type Pool struct {
	proxies      []proxylist.Proxy
	failCount    map[string]int
	mu           sync.Mutex
	currentIndex int
	maxFails     int
	failures     int
	removed      int
	lastRefresh  time.Time
}

func NewPool(maxFails int) *Pool {
	if maxFails <= 0 {
		maxFails = 3
	}
	return &Pool{
		failCount: make(map[string]int),
		maxFails:  maxFails,
	}
}

// Replace swaps the pool contents and resets rotation and failure counts.
func (p *Pool) Replace(proxies []proxylist.Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.proxies = append([]proxylist.Proxy(nil), proxies...)
	p.currentIndex = 0
	p.failCount = make(map[string]int)
	p.lastRefresh = time.Now()
}

func (p *Pool) Next() (proxylist.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return proxylist.Proxy{}, ErrNoHealthyProxies
	}

	proxy := p.proxies[p.currentIndex]
	p.currentIndex = (p.currentIndex + 1) % len(p.proxies)
	return proxy, nil
}

func (p *Pool) Random() (proxylist.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return proxylist.Proxy{}, ErrNoHealthyProxies
	}
	return p.proxies[rand.IntN(len(p.proxies))], nil
}

// ReportFailure counts a failure and reports whether the proxy was removed.
func (p *Pool) ReportFailure(proxy proxylist.Proxy) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := proxy.Address()
	p.failures++
	p.failCount[key]++
	if p.failCount[key] < p.maxFails {
		return false
	}

	kept := make([]proxylist.Proxy, 0, len(p.proxies))
	for _, existing := range p.proxies {
		if existing.Address() != key {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(p.proxies) {
		return false
	}

	p.proxies = kept
	p.removed++
	delete(p.failCount, key)
	if p.currentIndex >= len(p.proxies) {
		p.currentIndex = 0
	}
	return true
}

func (p *Pool) ReportSuccess(proxy proxylist.Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failCount, proxy.Address())
}

func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{
		TotalProxies: len(p.proxies),
		TypeCount:    make(map[string]int),
		CountryCount: make(map[string]int),
		Failures:     p.failures,
		Removed:      p.removed,
		LastRefresh:  p.lastRefresh,
	}
	for _, proxy := range p.proxies {
		stats.TypeCount[proxy.Type]++
		if proxy.Country != "" {
			stats.CountryCount[proxy.Country]++
		}
	}
	return stats
}

// Manager keeps a Pool filled from the configured proxy sources.
type Manager struct {
	pool           *Pool
	source         *proxylist.MultiSource
	check          func(ctx context.Context, proxies []proxylist.Proxy) []checker.CheckResult
	dbService      *database.Service
	refreshTimeout time.Duration
	updateTicker   *time.Ticker
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	refreshMu      sync.Mutex
	logger         *logger.Logger
}

func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		pool:           NewPool(config.MaxFailures),
		source:         proxylist.NewMultiSourceWithConfig(config.Sources),
		refreshTimeout: config.RefreshTimeout,
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger.New("manager"),
	}
	if m.refreshTimeout <= 0 {
		m.refreshTimeout = 10 * time.Minute
	}
	if config.Check {
		m.check = checker.NewChecker(config.Checker).CheckProxies
	}
	return m
}

// Start runs an initial refresh and then refreshes every updateInterval until
// Stop. A failed initial refresh is logged; the pool then starts empty.
func (m *Manager) Start(updateInterval time.Duration) error {
	if updateInterval <= 0 {
		return fmt.Errorf("invalid refresh interval %v", updateInterval)
	}

	m.logger.InfoBg("Starting proxy manager...")

	if m.dbService != nil {
		if err := m.loadHealthyProxies(m.ctx); err != nil {
			m.logger.WarnBg("Failed to load stored proxies: %v", err)
		}
	}

	if m.pool.Count() == 0 {
		if err := m.Refresh(m.ctx); err != nil {
			m.logger.WarnBg("Initial proxy refresh failed: %v", err)
		}
	}

	m.updateTicker = time.NewTicker(updateInterval)
	m.wg.Add(1)
	go m.updateLoop()

	m.logger.InfoBg("Proxy manager started with %d proxies", m.pool.Count())
	return nil
}

func (m *Manager) Stop() {
	m.logger.InfoBg("Stopping proxy manager...")

	if m.updateTicker != nil {
		m.updateTicker.Stop()
	}

	m.cancel()
	m.wg.Wait()

	m.logger.InfoBg("Proxy manager stopped")
}

// Refresh loads all sources, optionally health checks them and replaces the
// pool. An all-unhealthy result keeps the current pool.
func (m *Manager) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	m.logger.InfoBg("Refreshing proxy list...")

	proxies, err := m.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load proxies: %w", err)
	}

	healthy := proxies
	if m.check != nil {
		m.logger.InfoBg("Loaded %d proxies, checking health...", len(proxies))
		results := m.check(ctx, proxies)
		healthy = checker.FilterHealthy(results)
		m.logger.InfoBg("Found %d healthy proxies out of %d checked", len(healthy), len(results))
	}

	if len(healthy) == 0 {
		m.logger.WarnBg("No healthy proxies after refresh, keeping %d current proxies", m.pool.Count())
		return nil
	}

	oldCount := m.pool.Count()
	m.pool.Replace(healthy)
	m.logger.InfoBg("Updated proxy pool: %d -> %d proxies", oldCount, len(healthy))
	return nil
}

func (m *Manager) Next() (proxylist.Proxy, error) {
	return m.pool.Next()
}

func (m *Manager) Random() (proxylist.Proxy, error) {
	return m.pool.Random()
}

func (m *Manager) ReportFailure(proxy proxylist.Proxy) {
	if !m.pool.ReportFailure(proxy) {
		return
	}

	m.logger.WarnBg("Removed failing proxy: %s", proxy.Address())
	if m.dbService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.dbService.MarkProxyFailed(ctx, proxy); err != nil {
			m.logger.WarnBg("%v", err)
		}
	}
}

func (m *Manager) ReportSuccess(proxy proxylist.Proxy) {
	m.pool.ReportSuccess(proxy)
}

func (m *Manager) Stats() Stats {
	return m.pool.Stats()
}

func (m *Manager) Count() int {
	return m.pool.Count()
}

func (m *Manager) updateLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.updateTicker.C:
			m.logger.InfoBg("Running scheduled proxy refresh...")
			if err := m.Refresh(m.ctx); err != nil {
				m.logger.ErrorBg("Failed to refresh proxies: %v", err)
			}
		}
	}
}
