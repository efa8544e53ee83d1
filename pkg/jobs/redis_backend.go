package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errs "hyperdrive/pkg/errors"
)

// DefaultKeyPrefix namespaces the Redis keys
const DefaultKeyPrefix = "hyperdrive"

// RedisBackend keeps jobs in a hash, pending ids in a list and heartbeats in
// a second hash
type RedisBackend struct {
	client     *redis.Client
	jobsKey    string
	queueKey   string
	workersKey string
}

// NewRedisBackend connects to Redis at url and checks the connection
func NewRedisBackend(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "connect to redis "+opts.Addr)
	}
	return NewRedisBackendFromClient(client, prefix), nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisBackend{
		client:     client,
		jobsKey:    prefix + ":jobs",
		queueKey:   prefix + ":queue",
		workersKey: prefix + ":workers",
	}
}

func (b *RedisBackend) SaveJob(ctx context.Context, id string, data []byte) error {
	return b.client.HSet(ctx, b.jobsKey, id, data).Err()
}

func (b *RedisBackend) LoadJob(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.HGet(ctx, b.jobsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	return data, err
}

func (b *RedisBackend) LoadJobs(ctx context.Context) ([][]byte, error) {
	return b.loadAll(ctx, b.jobsKey)
}

func (b *RedisBackend) Push(ctx context.Context, id string) error {
	return b.client.RPush(ctx, b.queueKey, id).Err()
}

func (b *RedisBackend) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		id, err := b.client.LPop(ctx, b.queueKey).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return id, err
	}

	res, err := b.client.BLPop(ctx, timeout, b.queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// [key, value]
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply %v", res)
	}
	return res[1], nil
}

func (b *RedisBackend) Len(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, b.queueKey).Result()
}

func (b *RedisBackend) SaveWorker(ctx context.Context, id string, data []byte) error {
	return b.client.HSet(ctx, b.workersKey, id, data).Err()
}

func (b *RedisBackend) LoadWorker(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.HGet(ctx, b.workersKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (b *RedisBackend) LoadWorkers(ctx context.Context) ([][]byte, error) {
	return b.loadAll(ctx, b.workersKey)
}

func (b *RedisBackend) loadAll(ctx context.Context, key string) ([][]byte, error) {
	all, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(all))
	for _, v := range all {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
