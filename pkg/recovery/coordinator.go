package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/errors"
	"hyperdrive/pkg/identity"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/proxy"
	"hyperdrive/pkg/retry"
)

// Prober checks whether the proxy is serving again
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Prober
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// Resetter performs the rate-limit reset protocol
type Resetter interface {
	Reset(ctx context.Context) error
}

// Options configures one Coordinator. Counters live on the Coordinator, so
// each job gets its own.
type Options struct {
	Countries     []string
	MaxResets     int
	Warmup        time.Duration
	ProbeAttempts int
	ProbeInterval time.Duration
	StepTimeout   time.Duration
	Lock          *identity.Lock
	Logger        logger.Logger
}

// OptionsFromConfig builds Options with the given reset cap
func OptionsFromConfig(cfg *config.Config, maxResets int) Options {
	return Options{
		Countries:     cfg.Identity.Countries,
		MaxResets:     maxResets,
		Warmup:        cfg.Recovery.Warmup,
		ProbeAttempts: cfg.Recovery.ProbeAttempts,
		ProbeInterval: cfg.Recovery.ProbeInterval,
		StepTimeout:   cfg.Recovery.StepTimeout,
		Lock:          identity.NewLock(cfg.Identity.LockPath),
	}
}

// Coordinator runs the reset protocol: rotate the egress identity, restart
// the proxy with a clean cache, then wait until it answers again.
type Coordinator struct {
	identity identity.Source
	proxy    proxy.Controller
	prober   Prober
	opts     Options
	logger   logger.Logger

	mu      sync.Mutex
	count   int
	current string
}

// NewCoordinator creates a Coordinator
func NewCoordinator(src identity.Source, ctl proxy.Controller, prober Prober, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if len(opts.Countries) == 0 {
		opts.Countries = config.DefaultCountries
	}
	if opts.ProbeAttempts <= 0 {
		opts.ProbeAttempts = 1
	}
	return &Coordinator{
		identity: src,
		proxy:    ctl,
		prober:   prober,
		opts:     opts,
		logger:   log.WithField("component", "recovery"),
	}
}

// Count returns the number of resets attempted so far
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Current returns the identity chosen by the last reset
func (c *Coordinator) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reset runs one reset. The counter is incremented before anything else;
// once it exceeds MaxResets every call fails with ErrorTypeRecoveryExhausted.
// Steps before the probe are best effort. The probe decides the outcome.
func (c *Coordinator) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.count++
	n := c.count
	c.mu.Unlock()

	if n > c.opts.MaxResets {
		err := errors.Newf(errors.ErrorTypeRecoveryExhausted, "reset limit reached (%d)", c.opts.MaxResets)
		logger.LogReset(c.logger, n, c.opts.MaxResets, c.Current(), err)
		return err
	}

	release, err := c.opts.Lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("reset %d: %w", n, err)
	}
	defer func() {
		if err := release(); err != nil {
			c.logger.WithError(err).Warn("failed to release identity lock")
		}
	}()

	country := c.opts.Countries[n%len(c.opts.Countries)]
	c.mu.Lock()
	c.current = country
	c.mu.Unlock()

	c.logger.WarnWithFields("rate limited, resetting proxy", map[string]interface{}{
		"reset":      n,
		"max_resets": c.opts.MaxResets,
		"identity":   country,
	})

	c.step(ctx, "connect identity", c.identity.Connect)
	c.step(ctx, "flush proxy cache", c.proxy.FlushCache)
	c.step(ctx, "stop proxy", c.proxy.Stop)
	c.step(ctx, "switch identity", func(ctx context.Context) error {
		if err := c.identity.SetLocation(ctx, country); err != nil {
			return err
		}
		return c.identity.Reconnect(ctx)
	})
	c.step(ctx, "start proxy", c.proxy.Start)

	if err := retry.Wait(ctx, c.opts.Warmup); err != nil {
		return err
	}

	err = retry.Do(ctx, c.prober.Probe, &retry.Config{
		MaxAttempts: c.opts.ProbeAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: c.opts.ProbeInterval},
		RetryIf:     retry.Always,
		Logger:      c.logger,
		Name:        "proxy probe",
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = errors.Wrap(errors.ErrorTypeProxyUnavailable, err, "proxy not responding after reset")
		logger.LogReset(c.logger, n, c.opts.MaxResets, country, err)
		return err
	}

	logger.LogReset(c.logger, n, c.opts.MaxResets, country, nil)
	return nil
}

// step runs one best-effort protocol step under its own timeout
func (c *Coordinator) step(ctx context.Context, name string, fn func(context.Context) error) {
	stepCtx := ctx
	if c.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, c.opts.StepTimeout)
		defer cancel()
	}
	if err := fn(stepCtx); err != nil {
		c.logger.WithError(err).WarnWithFields("reset step failed, continuing", map[string]interface{}{
			"step": name,
		})
	}
}
