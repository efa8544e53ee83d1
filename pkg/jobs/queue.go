package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	errs "hyperdrive/pkg/errors"
	"hyperdrive/pkg/logger"
)

// Queue is the job store and pending queue shared by submitters and workers
type Queue struct {
	backend Backend
	logger  logger.Logger
	now     func() time.Time
}

// NewQueue creates a Queue over backend
func NewQueue(backend Backend, log logger.Logger) *Queue {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Queue{
		backend: backend,
		logger:  log.WithField("component", "jobs"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the backend
func (q *Queue) Close() error {
	return q.backend.Close()
}

// Submit validates p, stores a pending job and appends it to the queue
func (q *Queue) Submit(ctx context.Context, p Params) (*Job, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                uuid.NewString()[:8],
		Username:          p.Username,
		Status:            StatusPending,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		IncludeTweets:     p.IncludeTweets,
		IncludeRetweets:   p.IncludeRetweets,
		IncludeReplies:    p.IncludeReplies,
		CustomPrompt:      p.CustomPrompt,
		CurrentStep:       "Queued",
		Themes:            []string{},
		HighlightedTweets: []Highlight{},
		CreatedAt:         q.now(),
	}
	if err := q.save(ctx, job); err != nil {
		return nil, err
	}
	if err := q.backend.Push(ctx, job.ID); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "enqueue job")
	}

	q.logger.InfoWithFields("job submitted", map[string]interface{}{
		"job_id":   job.ID,
		"username": job.Username,
	})
	return job, nil
}

// Get returns the job with id, or ErrJobNotFound
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.backend.LoadJob(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "load job")
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode job "+id)
	}
	return &job, nil
}

// Claim pops the next pending job and marks it running for workerID. It
// returns nil, nil when no job arrived within timeout. Popped ids whose
// record is missing or no longer pending are dropped.
func (q *Queue) Claim(ctx context.Context, workerID string, timeout time.Duration) (*Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		id, err := q.backend.Pop(ctx, remaining)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "pop queue")
		}
		if id == "" {
			return nil, nil
		}

		job, err := q.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			q.logger.WarnWithFields("dropping queued id without a record", map[string]interface{}{"job_id": id})
			continue
		}
		if errs.TypeOf(err) == errs.ErrorTypeParsing {
			q.failUnreadable(ctx, id, err)
			return nil, err
		}
		if err != nil {
			q.requeue(ctx, id, err)
			return nil, err
		}
		if job.Status != StatusPending {
			q.logger.WarnWithFields("dropping queued job that is not pending", map[string]interface{}{
				"job_id": id,
				"status": string(job.Status),
			})
			continue
		}

		now := q.now()
		job.Status = StatusRunning
		job.StartedAt = &now
		job.WorkerID = workerID
		job.CurrentStep = "Starting..."
		if err := q.save(ctx, job); err != nil {
			q.requeue(ctx, id, err)
			return nil, err
		}
		logger.LogJobTransition(q.logger, job.ID, workerID, string(StatusPending), string(StatusRunning))
		return job, nil
	}
}

// requeue puts a popped id back when its claim could not be recorded, so the
// still-pending job is picked up again
func (q *Queue) requeue(ctx context.Context, id string, cause error) {
	log := q.logger.WithFields(map[string]interface{}{"job_id": id, "cause": cause.Error()})
	if err := q.backend.Push(context.WithoutCancel(ctx), id); err != nil {
		log.WithError(err).Error("failed to requeue job after claim error")
		return
	}
	log.Warn("claim failed, job requeued")
}

// failUnreadable replaces a record that cannot be decoded with a failed job,
// so the id is not requeued forever and still shows up in listings
func (q *Queue) failUnreadable(ctx context.Context, id string, cause error) {
	now := q.now()
	job := &Job{
		ID:                id,
		Status:            StatusFailed,
		CurrentStep:       "Failed",
		Error:             "unreadable job record: " + cause.Error(),
		Themes:            []string{},
		HighlightedTweets: []Highlight{},
		CreatedAt:         now,
		CompletedAt:       &now,
	}
	if err := q.save(context.WithoutCancel(ctx), job); err != nil {
		q.logger.WithError(err).ErrorWithFields("failed to record unreadable job", map[string]interface{}{"job_id": id})
		return
	}
	q.logger.ErrorWithFields("unreadable job record marked failed", map[string]interface{}{"job_id": id})
}

// UpdateProgress records a progress step. Terminal jobs are left unchanged.
func (q *Queue) UpdateProgress(ctx context.Context, id string, p Progress) error {
	return q.mutate(ctx, id, func(job *Job) {
		job.Progress = p.Percent
		job.CurrentStep = p.Step
		job.TweetsScraped = p.TweetsScraped
		job.RetweetsScraped = p.RetweetsScraped
	})
}

// Complete marks the job completed with its results. Completing a terminal
// job is a no-op.
func (q *Queue) Complete(ctx context.Context, id string, o Outcome) error {
	return q.mutate(ctx, id, func(job *Job) {
		now := q.now()
		prev := job.Status
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Progress = 100
		job.CurrentStep = "Complete"
		job.Analysis = o.Analysis
		job.Themes = nonNil(o.Themes)
		job.HighlightedTweets = o.Highlighted
		if job.HighlightedTweets == nil {
			job.HighlightedTweets = []Highlight{}
		}
		job.AllTweets = o.Items
		job.TweetsScraped = o.TweetsScraped
		job.RetweetsScraped = o.RetweetsScraped
		logger.LogJobTransition(q.logger, job.ID, job.WorkerID, string(prev), string(StatusCompleted))
	})
}

// Fail marks the job failed with msg. Failing a terminal job is a no-op.
func (q *Queue) Fail(ctx context.Context, id, msg string) error {
	return q.mutate(ctx, id, func(job *Job) {
		now := q.now()
		prev := job.Status
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.CurrentStep = "Failed"
		job.Error = msg
		logger.LogJobTransition(q.logger, job.ID, job.WorkerID, string(prev), string(StatusFailed))
		q.logger.ErrorWithFields("job failed", map[string]interface{}{"job_id": job.ID, "error": msg})
	})
}

// mutate applies fn to a non-terminal job and saves it
func (q *Queue) mutate(ctx context.Context, id string, fn func(*Job)) error {
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}
	fn(job)
	return q.save(ctx, job)
}

// List returns up to limit jobs, newest first. A non-positive limit returns all.
func (q *Queue) List(ctx context.Context, limit int) ([]*Job, error) {
	all, err := q.backend.LoadJobs(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "list jobs")
	}

	jobs := make([]*Job, 0, len(all))
	for _, data := range all {
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			q.logger.WithError(err).Warn("skipping undecodable job record")
			continue
		}
		jobs = append(jobs, &job)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// QueueLength returns the number of pending ids
func (q *Queue) QueueLength(ctx context.Context) (int64, error) {
	n, err := q.backend.Len(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "queue length")
	}
	return n, nil
}

// Register records a worker and the proxy it scrapes through
func (q *Queue) Register(ctx context.Context, workerID, proxyURL string) error {
	hb := Heartbeat{
		WorkerID:  workerID,
		State:     WorkerIdle,
		ProxyURL:  proxyURL,
		Timestamp: q.now(),
	}
	return q.saveWorker(ctx, hb)
}

// Heartbeat records the worker's state and current job
func (q *Queue) Heartbeat(ctx context.Context, workerID, state, jobID string) error {
	hb := Heartbeat{WorkerID: workerID}
	if data, err := q.backend.LoadWorker(ctx, workerID); err == nil && data != nil {
		_ = json.Unmarshal(data, &hb)
	}
	hb.State = state
	hb.CurrentJob = jobID
	hb.Timestamp = q.now()
	return q.saveWorker(ctx, hb)
}

// Workers returns every recorded heartbeat ordered by worker id
func (q *Queue) Workers(ctx context.Context) ([]Heartbeat, error) {
	all, err := q.backend.LoadWorkers(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "list workers")
	}
	out := make([]Heartbeat, 0, len(all))
	for _, data := range all {
		var hb Heartbeat
		if err := json.Unmarshal(data, &hb); err != nil {
			continue
		}
		out = append(out, hb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

// Stale reports running jobs whose worker has no heartbeat newer than
// olderThan. Nothing is reclaimed.
func (q *Queue) Stale(ctx context.Context, olderThan time.Duration) ([]*Job, error) {
	jobs, err := q.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	workers, err := q.Workers(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]time.Time, len(workers))
	for _, w := range workers {
		seen[w.WorkerID] = w.Timestamp
	}

	cutoff := q.now().Add(-olderThan)
	var stale []*Job
	for _, job := range jobs {
		if job.Status != StatusRunning {
			continue
		}
		last, ok := seen[job.WorkerID]
		if !ok || last.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "encode job")
	}
	if err := q.backend.SaveJob(ctx, job.ID, data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "save job")
	}
	return nil
}

func (q *Queue) saveWorker(ctx context.Context, hb Heartbeat) error {
	data, err := json.Marshal(hb)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "encode heartbeat")
	}
	if err := q.backend.SaveWorker(ctx, hb.WorkerID, data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "save heartbeat")
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
