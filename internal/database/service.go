package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jet/jet/v2/qrm"
	. "github.com/go-jet/jet/v2/sqlite"
	"github.com/google/uuid"

	"streamscout/internal/database/models/model"
	"streamscout/internal/database/models/table"
	"streamscout/internal/logger"
	"streamscout/pkg/proxylist"
)

// Service handles database operations for proxies, streams and runs
type Service struct {
	db     *DB
	logger *logger.Logger
}

// NewService creates a new database service
func NewService(db *DB) *Service {
	return &Service{db: db, logger: logger.New("database")}
}

// UpsertProxy inserts a proxy or refreshes its metadata, preserving health data
func (s *Service) UpsertProxy(ctx context.Context, proxy proxylist.Proxy) (*model.Proxies, error) {
	stmt := table.Proxies.INSERT(
		table.Proxies.Host,
		table.Proxies.Port,
		table.Proxies.ProxyType,
		table.Proxies.Country,
		table.Proxies.FirstSeenAt,
	).VALUES(
		proxy.Host,
		int32(proxy.Port),
		proxy.Type,
		nullable(proxy.Country),
		String(formatTime(time.Now())),
	).ON_CONFLICT(table.Proxies.Host, table.Proxies.Port).DO_UPDATE(SET(
		table.Proxies.ProxyType.SET(table.Proxies.EXCLUDED.ProxyType),
		table.Proxies.Country.SET(table.Proxies.EXCLUDED.Country),
	)).RETURNING(table.Proxies.AllColumns)

	var result model.Proxies
	if err := stmt.QueryContext(ctx, s.db, &result); err != nil {
		return nil, fmt.Errorf("failed to upsert proxy: %w", err)
	}

	return &result, nil
}

// GetProxiesByAddresses returns existing proxies keyed by host:port
func (s *Service) GetProxiesByAddresses(ctx context.Context, addresses []string) (map[string]*model.Proxies, error) {
	result := make(map[string]*model.Proxies)
	if len(addresses) == 0 {
		return result, nil
	}

	query := `
		SELECT id, host, port, proxy_type, country, status, response_time_ms, fail_count, first_seen_at, last_checked_at, last_healthy_at
		FROM proxies
		WHERE (host || ':' || port) IN (`

	args := make([]interface{}, len(addresses))
	placeholders := make([]string, len(addresses))
	for i, addr := range addresses {
		placeholders[i] = "?"
		args[i] = addr
	}
	query += strings.Join(placeholders, ",") + ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get proxies by addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Proxies
		err := rows.Scan(
			&p.ID, &p.Host, &p.Port, &p.ProxyType, &p.Country,
			&p.Status, &p.ResponseTimeMs, &p.FailCount,
			&p.FirstSeenAt, &p.LastCheckedAt, &p.LastHealthyAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proxy: %w", err)
		}
		result[fmt.Sprintf("%s:%d", p.Host, p.Port)] = &p
	}

	return result, rows.Err()
}

// BatchUpdateProxyHealth updates multiple proxy health statuses in a single transaction
func (s *Service) BatchUpdateProxyHealth(ctx context.Context, updates map[int32]ProxyHealth) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	healthyStmt, err := tx.PrepareContext(ctx, `
		UPDATE proxies
		SET status = ?, last_checked_at = ?, response_time_ms = ?, last_healthy_at = ?, fail_count = 0
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare healthy statement: %w", err)
	}
	defer healthyStmt.Close()

	unhealthyStmt, err := tx.PrepareContext(ctx, `
		UPDATE proxies
		SET status = ?, last_checked_at = ?, response_time_ms = ?, fail_count = fail_count + 1
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare unhealthy statement: %w", err)
	}
	defer unhealthyStmt.Close()

	for proxyID, health := range updates {
		checkedAt := health.CheckedAt
		if checkedAt.IsZero() {
			checkedAt = time.Now()
		}
		checked := formatTime(checkedAt)
		responseMs := int32(health.ResponseTime.Milliseconds())

		if health.Status == StatusHealthy {
			_, err = healthyStmt.ExecContext(ctx, health.Status, checked, responseMs, checked, proxyID)
		} else {
			_, err = unhealthyStmt.ExecContext(ctx, health.Status, checked, responseMs, proxyID)
		}
		if err != nil {
			return fmt.Errorf("failed to update proxy %d: %w", proxyID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugBg("Batch updated %d proxy health records", len(updates))
	return nil
}

// MarkProxyFailed records a failure reported while the proxy was in use
func (s *Service) MarkProxyFailed(ctx context.Context, proxy proxylist.Proxy) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE proxies SET status = 'unhealthy', fail_count = fail_count + 1, last_checked_at = ?
		WHERE host = ? AND port = ?
	`, formatTime(time.Now()), proxy.Host, proxy.Port)
	if err != nil {
		return fmt.Errorf("failed to mark proxy %s: %w", proxy.Address(), err)
	}
	return nil
}

// GetHealthyProxies returns all healthy proxies, most recently healthy first
func (s *Service) GetHealthyProxies(ctx context.Context) ([]model.Proxies, error) {
	stmt := SELECT(
		table.Proxies.AllColumns,
	).FROM(
		table.Proxies,
	).WHERE(
		table.Proxies.Status.EQ(String(StatusHealthy)),
	).ORDER_BY(
		table.Proxies.LastHealthyAt.DESC(),
	)

	var proxies []model.Proxies
	if err := stmt.QueryContext(ctx, s.db, &proxies); err != nil {
		return nil, fmt.Errorf("failed to get healthy proxies: %w", err)
	}

	return proxies, nil
}

// UpsertStream stores a resolved stream keyed by slug. Health columns are kept.
func (s *Service) UpsertStream(ctx context.Context, record StreamRecord) (*model.Streams, error) {
	var startAt interface{}
	if !record.StartAt.IsZero() {
		startAt = formatTime(record.StartAt)
	}

	stmt := table.Streams.INSERT(
		table.Streams.Slug,
		table.Streams.Source,
		table.Streams.Title,
		table.Streams.GroupTitle,
		table.Streams.Logo,
		table.Streams.URL,
		table.Streams.Referer,
		table.Streams.Origin,
		table.Streams.UserAgent,
		table.Streams.StartAt,
		table.Streams.LastSeenAt,
	).VALUES(
		record.Slug,
		record.Source,
		record.Title,
		nullable(record.Group),
		nullable(record.Logo),
		record.URL,
		nullable(record.Referer),
		nullable(record.Origin),
		nullable(record.UserAgent),
		startAt,
		String(formatTime(time.Now())),
	).ON_CONFLICT(table.Streams.Slug).DO_UPDATE(SET(
		table.Streams.Source.SET(table.Streams.EXCLUDED.Source),
		table.Streams.Title.SET(table.Streams.EXCLUDED.Title),
		table.Streams.GroupTitle.SET(table.Streams.EXCLUDED.GroupTitle),
		table.Streams.Logo.SET(table.Streams.EXCLUDED.Logo),
		table.Streams.URL.SET(table.Streams.EXCLUDED.URL),
		table.Streams.Referer.SET(table.Streams.EXCLUDED.Referer),
		table.Streams.Origin.SET(table.Streams.EXCLUDED.Origin),
		table.Streams.UserAgent.SET(table.Streams.EXCLUDED.UserAgent),
		table.Streams.StartAt.SET(table.Streams.EXCLUDED.StartAt),
		table.Streams.LastSeenAt.SET(table.Streams.EXCLUDED.LastSeenAt),
	)).RETURNING(table.Streams.AllColumns)

	var result model.Streams
	if err := stmt.QueryContext(ctx, s.db, &result); err != nil {
		return nil, fmt.Errorf("failed to upsert stream %s: %w", record.Slug, err)
	}

	return &result, nil
}

// GetStream returns the stream stored for slug, or nil when there is none
func (s *Service) GetStream(ctx context.Context, slug string) (*model.Streams, error) {
	stmt := SELECT(
		table.Streams.AllColumns,
	).FROM(
		table.Streams,
	).WHERE(
		table.Streams.Slug.EQ(String(slug)),
	)

	var stream model.Streams
	if err := stmt.QueryContext(ctx, s.db, &stream); err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	return &stream, nil
}

// ListStreams returns stored streams ordered by start time. An empty source lists all.
func (s *Service) ListStreams(ctx context.Context, source string) ([]model.Streams, error) {
	stmt := SELECT(
		table.Streams.AllColumns,
	).FROM(
		table.Streams,
	)
	if source != "" {
		stmt = stmt.WHERE(table.Streams.Source.EQ(String(source)))
	}
	stmt = stmt.ORDER_BY(
		table.Streams.StartAt.ASC(),
		table.Streams.Title.ASC(),
	)

	var streams []model.Streams
	if err := stmt.QueryContext(ctx, s.db, &streams); err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	return streams, nil
}

// StreamsNeedingCheck returns streams never checked or last checked before now-checkInterval
func (s *Service) StreamsNeedingCheck(ctx context.Context, checkInterval time.Duration) ([]model.Streams, error) {
	cutoff := time.Now().Add(-checkInterval)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, source, title, url, referer, origin, user_agent, status, last_checked_at
		FROM streams
		WHERE last_checked_at IS NULL OR last_checked_at < ?
	`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to get streams needing check: %w", err)
	}
	defer rows.Close()

	var streams []model.Streams
	for rows.Next() {
		var st model.Streams
		err := rows.Scan(
			&st.ID, &st.Slug, &st.Source, &st.Title, &st.URL,
			&st.Referer, &st.Origin, &st.UserAgent, &st.Status, &st.LastCheckedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stream: %w", err)
		}
		streams = append(streams, st)
	}

	return streams, rows.Err()
}

// UpdateStreamHealth stores the result of a manifest check
func (s *Service) UpdateStreamHealth(ctx context.Context, slug string, health StreamHealth) error {
	checkedAt := health.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE streams
		SET status = ?, kind = ?, variants = ?, response_time_ms = ?, last_checked_at = ?
		WHERE slug = ?
	`, health.Status, nullable(health.Kind), int32(health.Variants),
		int32(health.ResponseTime.Milliseconds()), formatTime(checkedAt), slug)
	if err != nil {
		return fmt.Errorf("failed to update stream %s: %w", slug, err)
	}
	return nil
}

// GetCachedStream returns an unexpired resolution for key, or nil
func (s *Service) GetCachedStream(ctx context.Context, key string) (*CachedStream, error) {
	var cached CachedStream
	var referer, origin, userAgent *string

	err := s.db.QueryRowContext(ctx, `
		SELECT url, referer, origin, user_agent FROM resolve_cache
		WHERE key = ? AND expires_at > ?
	`, key, formatTime(time.Now())).Scan(&cached.URL, &referer, &origin, &userAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read resolve cache: %w", err)
	}

	cached.Referer = deref(referer)
	cached.Origin = deref(origin)
	cached.UserAgent = deref(userAgent)
	return &cached, nil
}

// SetCachedStream stores a resolution for ttl
func (s *Service) SetCachedStream(ctx context.Context, key string, stream CachedStream, ttl time.Duration) error {
	stmt := table.ResolveCache.INSERT(
		table.ResolveCache.Key,
		table.ResolveCache.URL,
		table.ResolveCache.Referer,
		table.ResolveCache.Origin,
		table.ResolveCache.UserAgent,
		table.ResolveCache.ExpiresAt,
	).VALUES(
		key,
		stream.URL,
		nullable(stream.Referer),
		nullable(stream.Origin),
		nullable(stream.UserAgent),
		String(formatTime(time.Now().Add(ttl))),
	).ON_CONFLICT(table.ResolveCache.Key).DO_UPDATE(SET(
		table.ResolveCache.URL.SET(table.ResolveCache.EXCLUDED.URL),
		table.ResolveCache.Referer.SET(table.ResolveCache.EXCLUDED.Referer),
		table.ResolveCache.Origin.SET(table.ResolveCache.EXCLUDED.Origin),
		table.ResolveCache.UserAgent.SET(table.ResolveCache.EXCLUDED.UserAgent),
		table.ResolveCache.ExpiresAt.SET(table.ResolveCache.EXCLUDED.ExpiresAt),
	))

	if _, err := stmt.ExecContext(ctx, s.db); err != nil {
		return fmt.Errorf("failed to write resolve cache: %w", err)
	}
	return nil
}

// StartRun records the start of a scrape run and returns its id
func (s *Service) StartRun(ctx context.Context) (string, error) {
	id := uuid.NewString()

	stmt := table.Runs.INSERT(
		table.Runs.ID,
		table.Runs.StartedAt,
		table.Runs.Status,
	).VALUES(
		id,
		String(formatTime(time.Now())),
		"running",
	)

	if _, err := stmt.ExecContext(ctx, s.db); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of a run
func (s *Service) FinishRun(ctx context.Context, id string, summary RunSummary) error {
	status := "ok"
	var errMsg *string
	switch {
	case summary.Err != nil:
		status = "failed"
		errMsg = nullable(summary.Err.Error())
	case summary.Streams == 0:
		status = "empty"
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, events = ?, streams = ?, failed = ?, error = ?
		WHERE id = ?
	`, formatTime(time.Now()), status, summary.Events, summary.Streams, summary.Failed, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first
func (s *Service) RecentRuns(ctx context.Context, limit int64) ([]model.Runs, error) {
	stmt := SELECT(
		table.Runs.AllColumns,
	).FROM(
		table.Runs,
	).ORDER_BY(
		table.Runs.StartedAt.DESC(),
	).LIMIT(limit)

	var runs []model.Runs
	if err := stmt.QueryContext(ctx, s.db, &runs); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Cleanup removes proxies not healthy within maxAge, streams not seen within
// maxAge, old runs and expired cache entries
func (s *Service) Cleanup(ctx context.Context, maxAge time.Duration) error {
	now := time.Now()
	cutoff := formatTime(now.Add(-maxAge))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM proxies WHERE (last_healthy_at IS NULL AND first_seen_at < ?) OR last_healthy_at < ?`, []interface{}{cutoff, cutoff}},
		{`DELETE FROM streams WHERE last_seen_at < ?`, []interface{}{cutoff}},
		{`DELETE FROM runs WHERE started_at < ?`, []interface{}{cutoff}},
		{`DELETE FROM resolve_cache WHERE expires_at < ?`, []interface{}{formatTime(now)}},
	}

	for _, st := range statements {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("failed to cleanup: %w", err)
		}
	}

	return tx.Commit()
}

// Stats returns statistics about stored proxies, streams and runs
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Proxies: ProxyStats{ByType: make(map[string]int)},
		Streams: StreamStats{BySource: make(map[string]int)},
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM proxies", &stats.Proxies.Total},
		{"SELECT COUNT(*) FROM proxies WHERE status = 'healthy'", &stats.Proxies.Healthy},
		{"SELECT COUNT(*) FROM streams", &stats.Streams.Total},
		{"SELECT COUNT(*) FROM streams WHERE status = 'healthy'", &stats.Streams.Healthy},
		{"SELECT COUNT(*) FROM runs", &stats.Runs.Total},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("failed to count: %w", err)
		}
	}

	if err := s.groupCount(ctx, "SELECT proxy_type, COUNT(*) FROM proxies GROUP BY proxy_type", stats.Proxies.ByType); err != nil {
		return stats, err
	}
	if err := s.groupCount(ctx, "SELECT source, COUNT(*) FROM streams GROUP BY source", stats.Streams.BySource); err != nil {
		return stats, err
	}

	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		return stats, err
	}
	if len(runs) > 0 {
		stats.Runs.LastID = runs[0].ID
		stats.Runs.LastStatus = runs[0].Status
		started := runs[0].StartedAt
		stats.Runs.LastStart = &started
	}

	return stats, nil
}

func (s *Service) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan group row: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}
