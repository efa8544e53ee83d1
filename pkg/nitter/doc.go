// Package nitter talks to a self-hosted Nitter instance.
//
// Client.FetchPage performs one paced GET and returns a Page whose Status
// tells the caller what happened: a normal page, a rate limit (HTTP 429 or a
// rate-limit error panel), a missing account, a transient proxy failure, or a
// fatal error. Parsing is done with goquery against the stable extraction
// points of Nitter's timeline markup.
//
// Example:
//
//	client := nitter.NewClient(&cfg.Proxy, ratelimit.NewHostLimiter(4, 1), log)
//	page, err := client.FetchPage(ctx, nitter.TimelineURL(client.BaseURL(), "alice", ""))
//	if err != nil {
//	    return err
//	}
//	if page.Status == nitter.StatusRateLimited {
//	    // reset identity, then retry the same cursor
//	}
package nitter
