package checker

import (
	"context"
	"fmt"
	"time"

	"streamscout/internal/database"
	"streamscout/internal/database/models/model"
	"streamscout/internal/logger"
	"streamscout/pkg/proxylist"
)

// DBChecker is a proxy checker that uses SQLite to skip recently checked proxies
type DBChecker struct {
	*Checker
	dbService     *database.Service
	checkInterval time.Duration
	logger        *logger.Logger
}

func NewDBChecker(dbService *database.Service, config Config, checkInterval time.Duration) *DBChecker {
	return &DBChecker{
		Checker:       NewChecker(config),
		dbService:     dbService,
		checkInterval: checkInterval,
		logger:        logger.New("dbchecker"),
	}
}

// CheckProxiesWithCaching checks proxies but reuses stored results for those checked recently
func (c *DBChecker) CheckProxiesWithCaching(ctx context.Context, proxies []proxylist.Proxy) []CheckResult {
	if len(proxies) == 0 {
		return nil
	}

	addresses := make([]string, 0, len(proxies))
	proxyByAddr := make(map[string]proxylist.Proxy, len(proxies))
	for _, proxy := range proxies {
		addr := proxy.Address()
		if _, dup := proxyByAddr[addr]; !dup {
			addresses = append(addresses, addr)
		}
		proxyByAddr[addr] = proxy
	}

	existing, err := c.dbService.GetProxiesByAddresses(ctx, addresses)
	if err != nil {
		c.logger.WarnBg("Failed to get existing proxies, checking all: %v", err)
		return c.Checker.CheckProxies(ctx, proxies)
	}

	var dbProxies []*model.Proxies
	for _, addr := range addresses {
		if dbProxy, ok := existing[addr]; ok {
			dbProxies = append(dbProxies, dbProxy)
			continue
		}
		dbProxy, err := c.dbService.UpsertProxy(ctx, proxyByAddr[addr])
		if err != nil {
			c.logger.WarnBg("Failed to upsert new proxy %s: %v", addr, err)
			continue
		}
		dbProxies = append(dbProxies, dbProxy)
	}

	cutoff := time.Now().Add(-c.checkInterval)
	var toCheck []proxylist.Proxy
	idByAddr := make(map[string]int32)

	for _, dbProxy := range dbProxies {
		if dbProxy.LastCheckedAt != nil && !dbProxy.LastCheckedAt.Before(cutoff) {
			continue
		}
		proxy := proxyFromModel(dbProxy)
		toCheck = append(toCheck, proxy)
		if dbProxy.ID != nil {
			idByAddr[proxy.Address()] = *dbProxy.ID
		}
	}

	c.logger.InfoBg("%d of %d proxies need checking (interval %v)", len(toCheck), len(dbProxies), c.checkInterval)

	fresh := c.Checker.CheckProxies(ctx, toCheck)

	updates := make(map[int32]database.ProxyHealth)
	for _, result := range fresh {
		id, ok := idByAddr[result.Proxy.Address()]
		if !ok {
			continue
		}
		updates[id] = database.ProxyHealth{
			Status:       result.Status.String(),
			ResponseTime: result.ResponseTime,
			CheckedAt:    result.CheckedAt,
		}
	}

	if len(updates) > 0 {
		updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := c.dbService.BatchUpdateProxyHealth(updateCtx, updates); err != nil {
			c.logger.WarnBg("Failed to batch update proxy health: %v", err)
		}
		cancel()
	}

	return mergeResults(dbProxies, fresh)
}

// mergeResults prefers fresh results and falls back to the stored status
func mergeResults(dbProxies []*model.Proxies, fresh []CheckResult) []CheckResult {
	freshByAddr := make(map[string]CheckResult, len(fresh))
	for _, result := range fresh {
		freshByAddr[result.Proxy.Address()] = result
	}

	results := make([]CheckResult, 0, len(dbProxies))
	for _, dbProxy := range dbProxies {
		proxy := proxyFromModel(dbProxy)
		if result, ok := freshByAddr[proxy.Address()]; ok {
			results = append(results, result)
			continue
		}

		result := CheckResult{Proxy: proxy, Status: ParseStatus(dbProxy.Status)}
		if dbProxy.LastCheckedAt != nil {
			result.CheckedAt = *dbProxy.LastCheckedAt
		}
		if dbProxy.ResponseTimeMs != nil {
			result.ResponseTime = time.Duration(*dbProxy.ResponseTimeMs) * time.Millisecond
		}
		results = append(results, result)
	}

	return results
}

// GetHealthyProxiesFromDB returns healthy proxies from the database
func (c *DBChecker) GetHealthyProxiesFromDB(ctx context.Context) ([]proxylist.Proxy, error) {
	dbProxies, err := c.dbService.GetHealthyProxies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get healthy proxies from database: %w", err)
	}

	proxies := make([]proxylist.Proxy, 0, len(dbProxies))
	for i := range dbProxies {
		proxies = append(proxies, proxyFromModel(&dbProxies[i]))
	}
	return proxies, nil
}

func proxyFromModel(dbProxy *model.Proxies) proxylist.Proxy {
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
	return proxy
}

// DBStreamChecker skips manifests that were checked within the interval and
// whose URL has not changed since.
type DBStreamChecker struct {
	*StreamChecker
	dbService     *database.Service
	checkInterval time.Duration
	logger        *logger.Logger
}

func NewDBStreamChecker(dbService *database.Service, streamChecker *StreamChecker, checkInterval time.Duration) *DBStreamChecker {
	return &DBStreamChecker{
		StreamChecker: streamChecker,
		dbService:     dbService,
		checkInterval: checkInterval,
		logger:        logger.New("dbstreams"),
	}
}

// CheckWithCaching returns one result per target in input order. Cached
// results carry the stored status and Cached set.
func (c *DBStreamChecker) CheckWithCaching(ctx context.Context, targets []StreamTarget) []StreamResult {
	rows, err := c.dbService.StreamsNeedingCheck(ctx, c.checkInterval)
	if err != nil {
		c.logger.WarnBg("Failed to load stale streams, checking all: %v", err)
		return c.StreamChecker.CheckStreams(ctx, targets)
	}
	stale := make(map[string]bool, len(rows))
	for _, row := range rows {
		stale[row.Slug] = true
	}

	results := make([]StreamResult, len(targets))
	var toCheck []StreamTarget
	var positions []int

	for i, target := range targets {
		stored, err := c.dbService.GetStream(ctx, target.Slug)
		if err != nil || stored == nil || stored.URL != target.URL || stale[target.Slug] {
			toCheck = append(toCheck, target)
			positions = append(positions, i)
			continue
		}
		results[i] = cachedStreamResult(target, stored)
	}

	c.logger.InfoBg("%d of %d streams need checking", len(toCheck), len(targets))

	for j, result := range c.StreamChecker.CheckStreams(ctx, toCheck) {
		results[positions[j]] = result
	}
	return results
}

// Record stores fresh results. Streams must already exist in the database.
func (c *DBStreamChecker) Record(ctx context.Context, results []StreamResult) {
	for _, result := range results {
		if result.Cached {
			continue
		}
		err := c.dbService.UpdateStreamHealth(ctx, result.Target.Slug, database.StreamHealth{
			Status:       result.Status.String(),
			Kind:         result.Kind,
			Variants:     result.Variants,
			ResponseTime: result.ResponseTime,
			CheckedAt:    result.CheckedAt,
		})
		if err != nil {
			c.logger.WarnBg("Failed to record check for %s: %v", result.Target.Slug, err)
		}
	}
}

func cachedStreamResult(target StreamTarget, stored *model.Streams) StreamResult {
	result := StreamResult{
		Target: target,
		Status: ParseStatus(stored.Status),
		Cached: true,
	}
	if stored.Kind != nil {
		result.Kind = *stored.Kind
	}
	if stored.Variants != nil {
		result.Variants = int(*stored.Variants)
	}
	if stored.ResponseTimeMs != nil {
		result.ResponseTime = time.Duration(*stored.ResponseTimeMs) * time.Millisecond
	}
	if stored.LastCheckedAt != nil {
		result.CheckedAt = *stored.LastCheckedAt
	}
	return result
}
