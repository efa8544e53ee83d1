package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockRetry is how often a contended lock is retried
const DefaultLockRetry = 250 * time.Millisecond

// Lock is a host-wide advisory lock serialising identity changes across
// worker processes. Each Acquire opens its own lock file handle, so
// goroutines in one process also exclude each other.
type Lock struct {
	path       string
	retryDelay time.Duration
}

// NewLock creates a lock on path. An empty path yields a lock that never blocks.
func NewLock(path string) *Lock {
	return &Lock{path: path, retryDelay: DefaultLockRetry}
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the lock is held or ctx is done. The returned function
// releases it.
func (l *Lock) Acquire(ctx context.Context) (func() error, error) {
	if l == nil || l.path == "" {
		return func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(l.path)
	ok, err := fl.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire identity lock %s: %w", l.path, err)
	}
	if !ok {
		return nil, fmt.Errorf("identity lock %s not acquired", l.path)
	}
	return fl.Unlock, nil
}
