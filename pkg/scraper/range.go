package scraper

import (
	"context"
	"fmt"

	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/models"
	"hyperdrive/pkg/nitter"
	"hyperdrive/pkg/ratelimit"
	"hyperdrive/pkg/recovery"
)

// Fetcher fetches one proxy page
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*nitter.Page, error)
}

type state int

const (
	stateFetching state = iota
	stateRecovering
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateRecovering:
		return "recovering"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// RangeRequest describes one cursor chain to paginate
type RangeRequest struct {
	// Label identifies the range in logs, e.g. a window or "timeline"
	Label string
	// Account is the scraped user, used in not-found messages
	Account string
	// URL builds the page URL for a cursor ("" for the first page)
	URL func(cursor string) string
	// Kinds lists the post kinds to keep
	Kinds models.KindSet
	// EmptyPageThreshold stops the range after this many consecutive pages
	// without new posts
	EmptyPageThreshold int
	// Limit caps the number of posts collected; 0 means no cap
	Limit int
}

// RangeScraper paginates a single cursor chain
type RangeScraper struct {
	fetcher  Fetcher
	resetter recovery.Resetter
	pacer    ratelimit.Pacer
	seen     *SeenSet
	logger   logger.Logger
}

// NewRangeScraper creates a RangeScraper. seen is shared by every range of a job.
func NewRangeScraper(f Fetcher, r recovery.Resetter, pacer ratelimit.Pacer, seen *SeenSet, log logger.Logger) *RangeScraper {
	if log == nil {
		log = logger.GetLogger()
	}
	if pacer == nil {
		pacer = ratelimit.NoDelay{}
	}
	if seen == nil {
		seen = NewSeenSet()
	}
	return &RangeScraper{fetcher: f, resetter: r, pacer: pacer, seen: seen, logger: log}
}

// Run paginates the range until it is done or fails
func (rs *RangeScraper) Run(ctx context.Context, req RangeRequest) *Result {
	res := &Result{}
	log := rs.logger.WithField("range", req.Label)

	threshold := req.EmptyPageThreshold
	if threshold <= 0 {
		threshold = 1
	}

	var (
		cursor     string
		empty      int
		lastStatus nitter.Status
		st         = stateFetching
	)

	for st != stateDone && st != stateFailed {
		if err := ctx.Err(); err != nil {
			res.Err = err.Error()
			st = stateFailed
			break
		}

		switch st {
		case stateFetching:
			page, err := rs.fetcher.FetchPage(ctx, req.URL(cursor))
			if err != nil {
				res.Err = err.Error()
				st = stateFailed
				break
			}
			lastStatus = page.Status

			switch page.Status {
			case nitter.StatusRateLimited, nitter.StatusTransient:
				log.WarnWithFields("page not served, recovering", map[string]interface{}{
					"status": string(page.Status),
					"reason": page.ErrorText,
					"page":   res.PagesProcessed + 1,
				})
				st = stateRecovering

			case nitter.StatusNotFound:
				if req.Account != "" {
					res.Err = fmt.Sprintf("User @%s not found", req.Account)
				} else {
					res.Err = "not found"
				}
				st = stateFailed

			case nitter.StatusFatal:
				res.Err = page.ErrorText
				if res.Err == "" {
					res.Err = "proxy error"
				}
				st = stateFailed

			default:
				res.PagesProcessed++
				added := rs.accept(page.Posts, req, res)
				logger.LogPage(log, res.PagesProcessed, added, len(res.Posts), page.Cursor)

				if added == 0 {
					empty++
				} else {
					empty = 0
				}

				switch {
				case req.Limit > 0 && len(res.Posts) >= req.Limit:
					res.Capped = true
					st = stateDone
				case empty >= threshold:
					log.DebugWithFields("too many empty pages", map[string]interface{}{"empty_pages": empty})
					st = stateDone
				case page.TimelineEnd, page.Cursor == "":
					st = stateDone
				default:
					cursor = page.Cursor
					if err := rs.pacer.Wait(ctx); err != nil {
						res.Err = err.Error()
						st = stateFailed
					}
				}
			}

		case stateRecovering:
			res.Resets++
			if err := rs.resetter.Reset(ctx); err != nil {
				log.WarnWithFields("recovery failed, abandoning range", map[string]interface{}{
					"status": string(lastStatus),
					"error":  err.Error(),
				})
				res.Err = err.Error()
				res.RateLimited = true
				st = stateFailed
				break
			}
			// Retry the same cursor
			st = stateFetching
		}
	}

	log.InfoWithFields("range finished", map[string]interface{}{
		"state":        st.String(),
		"posts":        len(res.Posts),
		"pages":        res.PagesProcessed,
		"resets":       res.Resets,
		"rate_limited": res.RateLimited,
		"capped":       res.Capped,
	})
	return res
}

// accept adds unseen posts of requested kinds and returns how many were added
func (rs *RangeScraper) accept(posts []models.Post, req RangeRequest, res *Result) int {
	added := 0
	for _, p := range posts {
		if req.Limit > 0 && len(res.Posts) >= req.Limit {
			break
		}
		if rs.seen.Has(p.ID) || !req.Kinds.Has(p.Kind) {
			continue
		}
		if !rs.seen.Add(p.ID) {
			continue
		}
		res.Posts = append(res.Posts, p)
		added++
	}
	return added
}
