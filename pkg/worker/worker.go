package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"hyperdrive/pkg/analysis"
	"hyperdrive/pkg/config"
	errs "hyperdrive/pkg/errors"
	"hyperdrive/pkg/identity"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/retry"
	"hyperdrive/pkg/scraper"
)

// Failure messages recorded on jobs
const (
	MsgNoItems  = "No tweets found"
	MsgShutdown = "worker shutdown"
)

// ErrNoItems fails a job whose scrape collected nothing
var ErrNoItems = errors.New(MsgNoItems)

// Store is the part of the job queue a worker uses
type Store interface {
	Claim(ctx context.Context, workerID string, timeout time.Duration) (*jobs.Job, error)
	UpdateProgress(ctx context.Context, id string, p jobs.Progress) error
	Complete(ctx context.Context, id string, o jobs.Outcome) error
	Fail(ctx context.Context, id, msg string) error
	Register(ctx context.Context, workerID, proxyURL string) error
	Heartbeat(ctx context.Context, workerID, state, jobID string) error
}

// Scraper collects posts for one job, calling req.OnStage around each mode
type Scraper interface {
	Scrape(ctx context.Context, req scraper.Request) (*scraper.CorpusResult, error)
}

// Analyzer summarises and flags items
type Analyzer interface {
	Analyze(ctx context.Context, items []analysis.Item, label, custom string) (*analysis.Result, error)
}

// Options configures a Worker
type Options struct {
	ID           string
	ProxyURL     string
	ClaimTimeout time.Duration
	ErrorBackoff time.Duration
	// ToggleIdentity drops the egress identity while the analysis service
	// is called and restores it afterwards.
	ToggleIdentity bool
	Lock           *identity.Lock
	Logger         logger.Logger
}

// OptionsFromConfig builds Options from the worker, queue and identity sections
func OptionsFromConfig(cfg *config.Config, id string) Options {
	return Options{
		ID:             id,
		ProxyURL:       cfg.Proxy.BaseURL,
		ClaimTimeout:   cfg.Queue.ClaimTimeout,
		ErrorBackoff:   cfg.Worker.ErrorBackoff,
		ToggleIdentity: cfg.Identity.Enabled && cfg.Worker.ToggleIdentity,
		Lock:           identity.NewLock(cfg.Identity.LockPath),
	}
}

// Worker claims jobs one at a time and runs scrape, analysis and completion
type Worker struct {
	store    Store
	scraper  Scraper
	analyzer Analyzer
	identity identity.Source
	opts     Options
	logger   logger.Logger
}

// New creates a Worker. A nil identity source disables identity toggling.
func New(store Store, sc Scraper, an Analyzer, src identity.Source, opts Options) *Worker {
	if src == nil {
		src = identity.Disabled{}
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = 5 * time.Second
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Worker{
		store:    store,
		scraper:  sc,
		analyzer: an,
		identity: src,
		opts:     opts,
		logger:   log.WithField("worker_id", opts.ID),
	}
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.opts.ID
}

// Run polls the queue until ctx is cancelled. Errors from a single iteration
// are logged and followed by a pause; they never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoWithFields("worker started", map[string]interface{}{
		"proxy_url":     w.opts.ProxyURL,
		"claim_timeout": w.opts.ClaimTimeout.String(),
	})
	if err := w.store.Register(ctx, w.opts.ID, w.opts.ProxyURL); err != nil {
		w.logger.WithError(err).Warn("worker registration failed")
	}

	for ctx.Err() == nil {
		if err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.WithError(err).Error("worker loop error")
			_ = retry.Wait(ctx, w.opts.ErrorBackoff)
		}
	}

	w.heartbeat(context.WithoutCancel(ctx), jobs.WorkerIdle, "")
	w.logger.Info("worker stopped")
	return nil
}

// RunOnce performs one poll: heartbeat, claim and, when a job arrives,
// process it.
func (w *Worker) RunOnce(ctx context.Context) error {
	if err := w.store.Heartbeat(ctx, w.opts.ID, jobs.WorkerIdle, ""); err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}
	job, err := w.store.Claim(ctx, w.opts.ID, w.opts.ClaimTimeout)
	if err != nil {
		return fmt.Errorf("claim failed: %w", err)
	}
	if job == nil {
		return nil
	}

	w.heartbeat(ctx, jobs.WorkerBusy, job.ID)
	if err := w.Process(ctx, job); err != nil {
		w.logger.WithError(err).WithField("job_id", job.ID).Warn("job failed")
	}
	w.heartbeat(context.WithoutCancel(ctx), jobs.WorkerIdle, "")
	return nil
}

func (w *Worker) heartbeat(ctx context.Context, state, jobID string) {
	if err := w.store.Heartbeat(ctx, w.opts.ID, state, jobID); err != nil {
		w.logger.WithError(err).Debug("heartbeat failed")
	}
}

// Process runs one claimed job to a terminal state. A returned error has
// already been recorded on the job.
func (w *Worker) Process(ctx context.Context, job *jobs.Job) (err error) {
	log := w.logger.WithFields(map[string]interface{}{"job_id": job.ID, "username": job.Username})
	timer := logger.StartTimer(log, "job")

	defer func() {
		if r := recover(); r != nil {
			log.ErrorWithFields("job panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			timer.Stop()
			return
		}
		msg := err.Error()
		if ctx.Err() != nil {
			msg = MsgShutdown
		}
		log.WarnWithFields("job failed", map[string]interface{}{
			"error":      msg,
			"error_type": string(errs.TypeOf(err)),
		})
		if ferr := w.store.Fail(context.WithoutCancel(ctx), job.ID, msg); ferr != nil {
			log.WithError(ferr).Error("failed to record job failure")
		}
	}()

	return w.process(ctx, job, log)
}

func (w *Worker) process(ctx context.Context, job *jobs.Job, log logger.Logger) error {
	since, until, err := job.Window()
	if err != nil {
		return err
	}
	req := scraper.Request{
		Username:         job.Username,
		Since:            since,
		Until:            until,
		IncludeOriginals: job.IncludeTweets,
		IncludeReposts:   job.IncludeRetweets,
		IncludeReplies:   job.IncludeReplies,
	}

	var progress jobs.Progress
	report := func(percent int, step string) {
		progress.Percent, progress.Step = percent, step
		if err := w.store.UpdateProgress(ctx, job.ID, progress); err != nil {
			log.WithError(err).Warn("progress update failed")
		}
	}
	req.OnStage = func(stage scraper.Stage, res *scraper.Result) {
		switch stage {
		case scraper.StageRepostsStarted:
			report(10, "Scraping retweets...")
		case scraper.StageRepostsDone:
			progress.RetweetsScraped = len(res.Posts)
			report(30, fmt.Sprintf("Got %d retweets", progress.RetweetsScraped))
		case scraper.StageSearchStarted:
			report(40, "Scraping tweets...")
		case scraper.StageSearchDone:
			progress.TweetsScraped = len(res.Posts)
			report(60, fmt.Sprintf("Got %d tweets", progress.TweetsScraped))
		}
	}

	corpus, err := w.scraper.Scrape(ctx, req)
	if err != nil {
		return err
	}

	for _, r := range []scraper.Result{corpus.Reposts, corpus.Search} {
		if r.Err != "" {
			log.WarnWithFields("scrape ended early", map[string]interface{}{
				"error":        r.Err,
				"rate_limited": r.RateLimited,
				"items":        len(r.Posts),
			})
		}
	}

	items := analysis.FromPosts(corpus.Posts())
	if len(items) == 0 {
		return ErrNoItems
	}

	report(70, "Analyzing...")
	res, err := w.analyze(ctx, items, job)
	if err != nil {
		return err
	}

	report(90, "Finalizing...")
	applied := analysis.Merge(items, res.Flags)
	analysis.SortFlaggedFirst(items)

	summary := res.Summary
	if summary == "" && res.Err != "" {
		summary = "Analysis error: " + res.Err
	}
	log.InfoWithFields("analysis merged", map[string]interface{}{
		"items":            len(items),
		"flags":            len(res.Flags),
		"flags_applied":    applied,
		"chunks":           res.ChunksProcessed,
		"analysis_calls":   res.Calls,
		"analysis_warning": res.Err,
	})

	return w.store.Complete(ctx, job.ID, jobs.Outcome{
		Analysis:        summary,
		Themes:          []string{},
		Highlighted:     jobs.HighlightsFrom(items),
		Items:           items,
		TweetsScraped:   progress.TweetsScraped,
		RetweetsScraped: progress.RetweetsScraped,
	})
}

// analyze calls the analyzer, with the egress identity dropped for the
// duration when toggling is on. The identity lock is held throughout so no
// reset on this host rotates the identity mid-call.
func (w *Worker) analyze(ctx context.Context, items []analysis.Item, job *jobs.Job) (*analysis.Result, error) {
	if w.opts.ToggleIdentity {
		release, err := w.opts.Lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer func() { _ = release() }()

		if err := w.identity.Disconnect(ctx); err != nil {
			w.logger.WithError(err).Warn("identity disconnect failed")
		}
		defer func() {
			if err := w.identity.Connect(context.WithoutCancel(ctx)); err != nil {
				w.logger.WithError(err).Warn("identity reconnect failed")
			}
		}()
	}
	return w.analyzer.Analyze(ctx, items, job.Username, job.CustomPrompt)
}
