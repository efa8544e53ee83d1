package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive page fetches
type Pacer interface {
	// Wait blocks until the next fetch may proceed or ctx is done
	Wait(ctx context.Context) error
}

// FixedDelay is a Pacer that always waits the same delay. The scrape loop
// relies on resets rather than backoff to deal with rate limits, so the
// delay never grows.
type FixedDelay struct {
	Delay time.Duration
}

// NewFixedDelay creates a fixed-delay pacer
func NewFixedDelay(d time.Duration) *FixedDelay {
	return &FixedDelay{Delay: d}
}

// Wait sleeps for the configured delay
func (f *FixedDelay) Wait(ctx context.Context) error {
	if f == nil || f.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoDelay is a Pacer that never waits
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }

// HostLimiter rate-limits outgoing requests per hostname
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewHostLimiter creates a limiter allowing reqPerSec per host with the given burst
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(reqPerSec),
		b: burst,
	}
}

// Unlimited returns a HostLimiter that never blocks
func Unlimited() *HostLimiter {
	return NewHostLimiter(float64(rate.Inf), 1)
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, hl.b)
	hl.m[host] = lim
	return lim
}

// WaitURL blocks until a request to raw's host is allowed
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return hl.limiterFor("_").Wait(ctx)
	}
	return hl.limiterFor(u.Host).Wait(ctx)
}

// Allow reports whether a request to host may happen now, consuming a token if so
func (hl *HostLimiter) Allow(host string) bool {
	return hl.limiterFor(host).Allow()
}

// Reset forgets all per-host state, e.g. after the proxy restarts under a new identity
func (hl *HostLimiter) Reset() {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	hl.m = make(map[string]*rate.Limiter)
}
