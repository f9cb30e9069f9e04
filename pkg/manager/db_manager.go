package manager

import (
	"context"
	"fmt"

	"streamscout/internal/database"
	"streamscout/pkg/checker"
	"streamscout/pkg/proxylist"
)

// NewDBManager creates a manager that persists proxy health in SQLite. Stored
// healthy proxies are served immediately on Start, and checks skip proxies
// tested within config.CheckInterval.
func NewDBManager(dbService *database.Service, config Config) *Manager {
	m := NewManager(config)
	m.dbService = dbService

	if config.Check {
		m.check = checker.NewDBChecker(dbService, config.Checker, config.CheckInterval).CheckProxiesWithCaching
	}
	return m
}

// loadHealthyProxies loads stored healthy proxies into the pool
func (m *Manager) loadHealthyProxies(ctx context.Context) error {
	dbProxies, err := m.dbService.GetHealthyProxies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load healthy proxies: %w", err)
	}
	if len(dbProxies) == 0 {
		return nil
	}

	proxies := make([]proxylist.Proxy, 0, len(dbProxies))
	for _, dbProxy := range dbProxies {
		proxy := proxylist.Proxy{
			Host: dbProxy.Host,
			Port: int(dbProxy.Port),
			Type: dbProxy.ProxyType,
		}
		if dbProxy.Country != nil {
			proxy.Country = *dbProxy.Country
		}
		if dbProxy.LastHealthyAt != nil {
			proxy.LastSeen = *dbProxy.LastHealthyAt
		}
		proxies = append(proxies, proxy)
	}

	m.pool.Replace(proxies)
	m.logger.InfoBg("Loaded %d healthy proxies from database", len(proxies))
	return nil
}

// DBStats returns the persisted statistics, or nil without a database
func (m *Manager) DBStats(ctx context.Context) (*database.Stats, error) {
	if m.dbService == nil {
		return nil, nil
	}
	stats, err := m.dbService.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
