package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy maps a 1-based attempt number to the pause that follows it
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the pause by Multiplier after every attempt, up to
// MaxDelay. JitterFactor (0..1) spreads each pause by up to that fraction in
// either direction so several workers reconnecting at once drift apart.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff is tuned for reaching the job store at startup:
// quick first retries, then a pause of at most 30s while Redis comes up.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
	}
}

// NextDelay implements BackoffStrategy
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := float64(eb.BaseDelay)
	limit := float64(eb.MaxDelay)
	for i := 1; i < attempt && d < limit; i++ {
		d *= eb.Multiplier
	}
	if limit > 0 && d > limit {
		d = limit
	}

	if j := eb.JitterFactor; j > 0 {
		d *= 1 + j*(2*rand.Float64()-1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// ConstantBackoff pauses Delay between attempts. The proxy probe uses it.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay implements BackoffStrategy
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt > 0 {
		return cb.Delay
	}
	return 0
}

// Wait sleeps for delay, returning early with ctx.Err() on cancellation
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
