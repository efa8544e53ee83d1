package scraper

import (
	"context"
	"fmt"
	"time"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/models"
	"hyperdrive/pkg/nitter"
	"hyperdrive/pkg/ratelimit"
	"hyperdrive/pkg/recovery"
)

// ResetterFactory creates a fresh reset coordinator with the given cap. It is
// called once per mode of every job so counters never leak between jobs.
type ResetterFactory func(maxResets int) recovery.Resetter

// Options configures a CorpusScraper
type Options struct {
	PageDelay              time.Duration
	ChunkDays              int
	DefaultSpanDays        int
	MaxItems               int
	MaxReposts             int
	EmptyPageThreshold     int
	TimelineEmptyThreshold int
	SearchMaxResets        int
	TimelineMaxResets      int
	Logger                 logger.Logger
	// Now is used for the default span; defaults to time.Now
	Now func() time.Time
}

// OptionsFromConfig builds Options from the scrape and recovery sections
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PageDelay:              cfg.Scrape.PageDelay,
		ChunkDays:              cfg.Scrape.ChunkDays,
		DefaultSpanDays:        cfg.Scrape.DefaultSpanDays,
		MaxItems:               cfg.Scrape.MaxItems,
		MaxReposts:             cfg.Scrape.MaxReposts,
		EmptyPageThreshold:     cfg.Scrape.EmptyPageThreshold,
		TimelineEmptyThreshold: cfg.Scrape.TimelineEmptyThreshold,
		SearchMaxResets:        cfg.Recovery.SearchMaxResets,
		TimelineMaxResets:      cfg.Recovery.TimelineMaxResets,
	}
}

// Stage marks the start or end of one scrape mode
type Stage int

const (
	StageRepostsStarted Stage = iota
	StageRepostsDone
	StageSearchStarted
	StageSearchDone
)

// StageFunc observes a corpus scrape. res is nil when a mode starts.
type StageFunc func(stage Stage, res *Result)

// Request describes what to collect for one user
type Request struct {
	Username string
	// Since and Until bound the search span; zero values use the default span
	Since            time.Time
	Until            time.Time
	IncludeOriginals bool
	IncludeReposts   bool
	IncludeReplies   bool
	// OnStage, when set, is called as each mode starts and finishes
	OnStage StageFunc
}

// Notify calls OnStage if it is set
func (r Request) Notify(stage Stage, res *Result) {
	if r.OnStage != nil {
		r.OnStage(stage, res)
	}
}

// CorpusScraper collects a user's posts over a date span
type CorpusScraper struct {
	fetcher     Fetcher
	baseURL     string
	newResetter ResetterFactory
	opts        Options
	logger      logger.Logger
}

// NewCorpusScraper creates a CorpusScraper
func NewCorpusScraper(f Fetcher, baseURL string, newResetter ResetterFactory, opts Options) *CorpusScraper {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CorpusScraper{
		fetcher:     f,
		baseURL:     baseURL,
		newResetter: newResetter,
		opts:        opts,
		logger:      log,
	}
}

// Span returns the search span for req
func (cs *CorpusScraper) Span(req Request) (time.Time, time.Time) {
	defStart, defEnd := DefaultSpan(cs.opts.Now(), cs.opts.DefaultSpanDays)
	since, until := req.Since, req.Until
	if until.IsZero() {
		until = defEnd
	}
	if since.IsZero() {
		if req.Until.IsZero() {
			since = defStart
		} else {
			since = until.AddDate(0, 0, -cs.opts.DefaultSpanDays)
		}
	}
	return since, until
}

// Scrape collects reposts from the timeline (when requested) and then
// originals and replies from search, sharing one SeenSet.
func (cs *CorpusScraper) Scrape(ctx context.Context, req Request) (*CorpusResult, error) {
	if req.Username == "" {
		return nil, fmt.Errorf("username is required")
	}

	seen := NewSeenSet()
	out := &CorpusResult{}
	if req.IncludeReposts {
		req.Notify(StageRepostsStarted, nil)
		out.Reposts = *cs.ScrapeReposts(ctx, req, seen)
		req.Notify(StageRepostsDone, &out.Reposts)
	}
	if req.IncludeOriginals || req.IncludeReplies {
		req.Notify(StageSearchStarted, nil)
		out.Search = *cs.ScrapeSearch(ctx, req, seen)
		req.Notify(StageSearchDone, &out.Search)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ScrapeReposts walks the user's timeline keeping reposts only
func (cs *CorpusScraper) ScrapeReposts(ctx context.Context, req Request, seen *SeenSet) *Result {
	log := cs.logger.WithFields(map[string]interface{}{"username": req.Username, "mode": "timeline"})
	log.Info("timeline scrape started")

	rs := NewRangeScraper(cs.fetcher, cs.newResetter(cs.opts.TimelineMaxResets),
		ratelimit.NewFixedDelay(cs.opts.PageDelay), seen, log)
	res := rs.Run(ctx, RangeRequest{
		Label:   "timeline",
		Account: req.Username,
		URL: func(cursor string) string {
			return nitter.TimelineURL(cs.baseURL, req.Username, cursor)
		},
		Kinds:              models.Kinds(models.KindRepost),
		EmptyPageThreshold: cs.opts.TimelineEmptyThreshold,
		Limit:              cs.opts.MaxReposts,
	})
	res.WindowsProcessed = 1

	log.InfoWithFields("timeline scrape complete", map[string]interface{}{
		"reposts":      len(res.Posts),
		"resets":       res.Resets,
		"rate_limited": res.RateLimited,
		"error":        res.Err,
	})
	return res
}

// ScrapeSearch runs one search range per window, newest window first. It
// stops early when the item cap is reached or a window ends rate limited.
func (cs *CorpusScraper) ScrapeSearch(ctx context.Context, req Request, seen *SeenSet) *Result {
	since, until := cs.Span(req)
	windows := BuildWindows(since, until, cs.opts.ChunkDays)

	log := cs.logger.WithFields(map[string]interface{}{"username": req.Username, "mode": "search"})
	log.InfoWithFields("search scrape started", map[string]interface{}{
		"since":   since.Format(models.DateLayout),
		"until":   until.Format(models.DateLayout),
		"windows": len(windows),
	})

	kinds := models.KindSet{}
	if req.IncludeOriginals {
		kinds[models.KindOriginal] = true
	}
	if req.IncludeReplies {
		kinds[models.KindReply] = true
	}

	agg := &Result{}
	rs := NewRangeScraper(cs.fetcher, cs.newResetter(cs.opts.SearchMaxResets),
		ratelimit.NewFixedDelay(cs.opts.PageDelay), seen, log)

	for i, w := range windows {
		if ctx.Err() != nil {
			agg.Err = ctx.Err().Error()
			break
		}
		limit := 0
		if cs.opts.MaxItems > 0 {
			limit = cs.opts.MaxItems - len(agg.Posts)
			if limit <= 0 {
				agg.Capped = true
				break
			}
		}

		query := nitter.SearchQuery(req.Username, w)
		res := rs.Run(ctx, RangeRequest{
			Label:   w.String(),
			Account: req.Username,
			URL: func(cursor string) string {
				return nitter.SearchURL(cs.baseURL, query, cursor)
			},
			Kinds:              kinds,
			EmptyPageThreshold: cs.opts.EmptyPageThreshold,
			Limit:              limit,
		})
		agg.absorb(res)
		agg.WindowsProcessed++

		log.InfoWithFields("window complete", map[string]interface{}{
			"window":  fmt.Sprintf("%d/%d", i+1, len(windows)),
			"range":   w.String(),
			"posts":   len(res.Posts),
			"running": len(agg.Posts),
		})

		if res.RateLimited {
			log.Warn("stopping search after rate-limited window")
			break
		}
		if res.Capped {
			break
		}
	}

	log.InfoWithFields("search scrape complete", map[string]interface{}{
		"posts":        len(agg.Posts),
		"windows":      fmt.Sprintf("%d/%d", agg.WindowsProcessed, len(windows)),
		"resets":       agg.Resets,
		"rate_limited": agg.RateLimited,
		"capped":       agg.Capped,
	})
	return agg
}
