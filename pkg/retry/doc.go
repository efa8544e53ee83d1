// Package retry provides bounded retry loops with pluggable backoff.
//
// It is used for the proxy availability probe at the end of a reset
// (constant spacing) and for connecting to the job store at startup
// (exponential with jitter).
//
//	err := retry.Do(ctx, probe, &retry.Config{
//	    MaxAttempts: 5,
//	    Backoff:     &retry.ConstantBackoff{Delay: 2 * time.Second},
//	    RetryIf:     retry.Always,
//	})
package retry
