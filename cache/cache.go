// Package cache memoizes extracted records in Redis so a repeated lookup
// of the same CNPJ does not need another browser session.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"cnpjscraper/logger"
)

// Options configures the Redis connection. An empty Addr disables caching.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache wraps a Redis client. A nil *Cache or one without a client is a
// pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// New returns a Cache for opts. When opts.Addr is empty the returned Cache
// never hits.
func New(opts Options, log logger.Logger) *Cache {
	c := &Cache{ttl: opts.TTL, log: log}
	if opts.Addr == "" {
		return c
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return c
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Key builds the cache key for a normalized CNPJ.
func Key(digits string) string {
	return "cnpj:" + digits
}

// Memoize returns the cached value for key, or calls fn and caches its
// result. keep decides whether a freshly computed value is worth storing.
// Redis failures are logged and treated as a miss.
func Memoize[T any](ctx context.Context, c *Cache, key string, keep func(T) bool, fn func() (T, error)) (T, bool, error) {
	var result T

	if c.Enabled() {
		cached, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(cached, &result); jsonErr == nil {
				return result, true, nil
			}
			c.log.Warn("discarding undecodable cache entry", logger.String("key", key))
		case !errors.Is(err, redis.Nil):
			c.log.Warn("cache read failed", logger.String("key", key), logger.Err(err))
		}
	}

	result, err := fn()
	if err != nil {
		return result, false, err
	}

	if c.Enabled() && (keep == nil || keep(result)) {
		data, err := json.Marshal(result)
		if err == nil {
			err = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		if err != nil {
			c.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
		}
	}

	return result, false, nil
}
