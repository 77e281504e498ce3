package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chronomap/internal/logger"
	"chronomap/internal/metrics"
)

// KV is the subset of *redis.Client used by RedisCache.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// RedisCache keeps raw response bodies in redis in front of another
// Fetcher. Historical snapshots never change, so a TTL only bounds memory.
// Redis failures degrade to a pass-through.
type RedisCache struct {
	next   Fetcher
	kv     KV
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedisCache(next Fetcher, kv KV, ttl time.Duration) *RedisCache {
	return &RedisCache{next: next, kv: kv, ttl: ttl, prefix: "chronomap:resp:", log: logger.L()}
}

func (c *RedisCache) Fetch(ctx context.Context, path string) ([]byte, error) {
	key := c.prefix + path
	b, err := c.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.ResponseCacheHits.Inc()
		c.log.Debug("resp_cache_hit", "path", path)
		return b, nil
	case errors.Is(err, redis.Nil):
		metrics.ResponseCacheMisses.Inc()
	default:
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		metrics.ResponseCacheMisses.Inc()
		c.log.Warn("resp_cache_get_failed", "path", path, "err", err)
	}
	b, err = c.next.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := c.kv.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.log.Warn("resp_cache_set_failed", "path", path, "err", err)
	}
	return b, nil
}
