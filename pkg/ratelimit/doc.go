// Package ratelimit paces requests to the scraping proxy.
//
// Two mechanisms are combined: a HostLimiter (token bucket per host, backed
// by golang.org/x/time/rate) consulted before every HTTP request, and a Pacer
// that inserts a fixed delay between successful page fetches.
package ratelimit
