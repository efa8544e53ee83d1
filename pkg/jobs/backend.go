package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"hyperdrive/pkg/config"
	errs "hyperdrive/pkg/errors"
)

// ErrJobNotFound is returned for unknown job ids
var ErrJobNotFound = errors.New("job not found")

// Backend stores job records, the pending queue and worker heartbeats as
// opaque JSON documents. Pop must hand each pushed id to at most one caller.
type Backend interface {
	SaveJob(ctx context.Context, id string, data []byte) error
	// LoadJob returns ErrJobNotFound for unknown ids
	LoadJob(ctx context.Context, id string) ([]byte, error)
	LoadJobs(ctx context.Context) ([][]byte, error)

	Push(ctx context.Context, id string) error
	// Pop removes the oldest id, waiting up to timeout. It returns "" when
	// the queue stayed empty.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Len(ctx context.Context) (int64, error)

	SaveWorker(ctx context.Context, id string, data []byte) error
	// LoadWorker returns nil data for unknown workers
	LoadWorker(ctx context.Context, id string) ([]byte, error)
	LoadWorkers(ctx context.Context) ([][]byte, error)

	Close() error
}

// OpenBackend creates the configured backend
func OpenBackend(ctx context.Context, cfg *config.QueueConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "redis":
		return NewRedisBackend(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, errs.Newf(errs.ErrorTypeConfig, "unknown queue backend %q", cfg.Backend)
	}
}
