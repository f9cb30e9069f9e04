package cache

import (
	"context"
	"time"

	"streamscout/internal/database"
)

// SQLite keeps resolved streams in the resolve_cache table.
type SQLite struct {
	db *database.Service
}

func NewSQLite(db *database.Service) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, key string) (*Stream, error) {
	cached, err := s.db.GetCachedStream(ctx, key)
	if err != nil || cached == nil {
		return nil, err
	}
	return &Stream{
		URL:       cached.URL,
		Referer:   cached.Referer,
		Origin:    cached.Origin,
		UserAgent: cached.UserAgent,
	}, nil
}

func (s *SQLite) Set(ctx context.Context, key string, stream Stream, ttl time.Duration) error {
	return s.db.SetCachedStream(ctx, key, database.CachedStream{
		URL:       stream.URL,
		Referer:   stream.Referer,
		Origin:    stream.Origin,
		UserAgent: stream.UserAgent,
	}, ttl)
}

// Close is a no-op; the database is owned by the caller.
func (s *SQLite) Close() error {
	return nil
}
