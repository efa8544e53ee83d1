// Package recovery implements the proxy reset protocol used when the scrape
// target starts rate limiting.
//
// A reset reconnects the egress identity, flushes the proxy cache, stops the
// proxy, moves the identity to the next country in the pool, starts the proxy
// again and then probes it until it answers. Only the probe can fail a reset;
// the earlier steps are logged and skipped over when they error.
package recovery
