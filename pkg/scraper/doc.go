// Package scraper collects a user's posts from the proxy across a date span.
//
// Architecture:
//
// A RangeScraper paginates one cursor chain (a timeline, or one search
// window) as an explicit state machine:
//
//	fetching --rate limited / transient--> recovering --reset ok--> fetching (same cursor)
//	fetching --not found / fatal-------------------------------> failed
//	recovering --reset failed----------------------------------> failed
//	fetching --end marker, no cursor, cap, N empty pages------> done
//
// A CorpusScraper drives RangeScrapers: first the timeline for reposts, then
// one search per date window, newest window first. Windows and modes share a
// SeenSet, so a post id is collected at most once per job.
//
// Usage:
//
//	cs := scraper.NewCorpusScraper(client, client.BaseURL(), newResetter, scraper.OptionsFromConfig(cfg))
//	res, err := cs.Scrape(ctx, scraper.Request{
//	    Username:         "alice",
//	    IncludeOriginals: true,
//	    IncludeReposts:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	posts := res.Posts()
//
// Rate limits are never waited out. Each rate-limited page triggers a reset
// through the recovery package, bounded by a per-job reset cap.
package scraper
