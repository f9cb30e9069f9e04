package cache

import (
	"context"
	"time"

	"streamscout/internal/database"
)

// Stream is a resolved stream and the headers a player must send with it.
type Stream struct {
	URL       string `json:"url"`
	Referer   string `json:"referer,omitempty"`
	Origin    string `json:"origin,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Cache stores resolved streams by key. Get returns nil, nil on a miss or an
// expired entry.
type Cache interface {
	Get(ctx context.Context, key string) (*Stream, error)
	Set(ctx context.Context, key string, stream Stream, ttl time.Duration) error
	Close() error
}

// New picks the backend: redis when redisURL is set, else sqlite when a
// database is available, else memory.
func New(redisURL, prefix string, dbService *database.Service) (Cache, error) {
	if redisURL != "" {
		return NewRedis(redisURL, prefix)
	}
	if dbService != nil {
		return NewSQLite(dbService), nil
	}
	return NewMemory(), nil
}
