package proxy

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache flushes the proxy's own Redis instance
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the proxy cache at addr (host:port or redis:// URL)
func NewRedisCache(addr string) *RedisCache {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	return &RedisCache{client: redis.NewClient(opts)}
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Flush removes every key from the cache
func (r *RedisCache) Flush(ctx context.Context) error {
	if err := r.client.FlushAll(ctx).Err(); err != nil {
		return fmt.Errorf("failed to flush proxy cache: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (r *RedisCache) Close() error {
	return r.client.Close()
}
