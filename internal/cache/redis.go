package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "streamscout:"

// Redis stores streams as JSON values under prefix+key with a TTL.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis parses a Redis URL (e.g. "redis://host:6379/0"). The connection is
// not checked until Ping or the first command.
func NewRedis(rawURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: redis.NewClient(opts), prefix: prefix}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) Get(ctx context.Context, key string) (*Stream, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var stream Stream
	if err := json.Unmarshal(raw, &stream); err != nil {
		return nil, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return &stream, nil
}

func (r *Redis) Set(ctx context.Context, key string, stream Stream, ttl time.Duration) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
