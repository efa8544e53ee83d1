package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/analysis"
	errs "hyperdrive/pkg/errors"
)

// queueFactory returns a Queue over a fresh, empty store
type queueFactory func(t *testing.T) *Queue

func aliceParams() Params {
	return Params{Username: "@alice", IncludeTweets: true, IncludeRetweets: true}
}

// runQueueSuite exercises the Queue contract against one backend
func runQueueSuite(t *testing.T, newQueue queueFactory) {
	ctx := context.Background()

	t.Run("submit and get", func(t *testing.T) {
		q := newQueue(t)
		job, err := q.Submit(ctx, Params{
			Username:      " @alice ",
			StartDate:     "2024-01-01",
			EndDate:       "2024-03-01",
			IncludeTweets: true,
			CustomPrompt:  "Only sports.",
		})
		require.NoError(t, err)
		assert.Len(t, job.ID, 8)
		assert.Equal(t, "alice", job.Username)
		assert.Equal(t, StatusPending, job.Status)
		assert.Equal(t, "Queued", job.CurrentStep)

		got, err := q.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, "2024-01-01", got.StartDate)
		assert.Equal(t, "Only sports.", got.CustomPrompt)
		assert.Equal(t, job.CreatedAt.Unix(), got.CreatedAt.Unix())

		n, err := q.QueueLength(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("get unknown", func(t *testing.T) {
		q := newQueue(t)
		_, err := q.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("submit validates", func(t *testing.T) {
		q := newQueue(t)
		bad := []Params{
			{Username: "", IncludeTweets: true},
			{Username: "bad name", IncludeTweets: true},
			{Username: "alice"},
			{Username: "alice", IncludeTweets: true, StartDate: "01/02/2024"},
			{Username: "alice", IncludeTweets: true, StartDate: "2024-03-01", EndDate: "2024-01-01"},
		}
		for _, p := range bad {
			_, err := q.Submit(ctx, p)
			assert.True(t, errs.Is(err, errs.ErrorTypeValidation), "params %+v: %v", p, err)
		}
		n, err := q.QueueLength(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("claim is FIFO and marks running", func(t *testing.T) {
		q := newQueue(t)
		first, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)
		second, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)

		got, err := q.Claim(ctx, "w1", time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, StatusRunning, got.Status)
		assert.Equal(t, "w1", got.WorkerID)
		assert.Equal(t, "Starting...", got.CurrentStep)
		assert.NotNil(t, got.StartedAt)

		stored, err := q.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, stored.Status)

		got, err = q.Claim(ctx, "w2", time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("claim times out empty", func(t *testing.T) {
		q := newQueue(t)
		start := time.Now()
		got, err := q.Claim(ctx, "w1", time.Second)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	})

	t.Run("claim skips terminal and missing", func(t *testing.T) {
		q := newQueue(t)
		require.NoError(t, q.backend.Push(ctx, "ghost"))
		failed, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)
		require.NoError(t, q.Fail(ctx, failed.ID, "cancelled"))
		live, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)

		got, err := q.Claim(ctx, "w1", time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, live.ID, got.ID)
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		q := newQueue(t)
		job, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			mu      sync.Mutex
			holders []string
		)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(worker string) {
				defer wg.Done()
				got, err := q.Claim(ctx, worker, time.Second)
				assert.NoError(t, err)
				if got != nil {
					winners.Add(1)
					mu.Lock()
					holders = append(holders, worker)
					mu.Unlock()
				}
			}(fmt.Sprintf("w%d", i))
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
		stored, err := q.Get(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, holders, 1)
		assert.Equal(t, holders[0], stored.WorkerID)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		q := newQueue(t)
		job, err := q.Submit(ctx, aliceParams())
		require.NoError(t, err)
		_, err = q.Claim(ctx, "w1", time.Second)
		require.NoError(t, err)

		require.NoError(t, q.UpdateProgress(ctx, job.ID, Progress{Percent: 30, Step: "Got 2 retweets", RetweetsScraped: 2}))
		got, err := q.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got.Progress)
		assert.Equal(t, 2, got.RetweetsScraped)

		items := []analysis.Item{{Index: 0, ID: "1", Text: "hi", Flagged: true, FlagReason: "r"}}
		require.NoError(t, q.Complete(ctx, job.ID, Outcome{
			Analysis:      "summary",
			Items:         items,
			Highlighted:   HighlightsFrom(items),
			TweetsScraped: 1,
		}))
		require.NoError(t, q.Complete(ctx, job.ID, Outcome{Analysis: "again"}))
		require.NoError(t, q.Fail(ctx, job.ID, "late failure"))
		require.NoError(t, q.UpdateProgress(ctx, job.ID, Progress{Percent: 10}))

		got, err = q.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, "summary", got.Analysis)
		assert.Equal(t, 100, got.Progress)
		assert.Equal(t, "Complete", got.CurrentStep)
		assert.Empty(t, got.Error)
		assert.Equal(t, []Highlight{{Text: "hi", Reason: "r", Images: []string{}}}, got.HighlightedTweets)
		assert.Equal(t, items, got.AllTweets)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("list newest first", func(t *testing.T) {
		q := newQueue(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var ids []string
		for i := 0; i < 3; i++ {
			at := base.Add(time.Duration(i) * time.Hour)
			q.now = func() time.Time { return at }
			job, err := q.Submit(ctx, aliceParams())
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}

		all, err := q.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

		top, err := q.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, top, 2)
	})

	t.Run("heartbeats and stale jobs", func(t *testing.T) {
		q := newQueue(t)
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		q.now = func() time.Time { return now }

		require.NoError(t, q.Register(ctx, "w1", "http://nitter:8080"))
		require.NoError(t, q.Heartbeat(ctx, "w1", WorkerBusy, "job1"))

		for _, w := range []string{"w1", "w2", "w3"} {
			_, err := q.Submit(ctx, aliceParams())
			require.NoError(t, err)
			_, err = q.Claim(ctx, w, time.Second)
			require.NoError(t, err)
		}
		// w2 last seen long ago, w3 never
		q.now = func() time.Time { return now.Add(-time.Hour) }
		require.NoError(t, q.Heartbeat(ctx, "w2", WorkerBusy, "x"))
		q.now = func() time.Time { return now.Add(time.Minute) }

		workers, err := q.Workers(ctx)
		require.NoError(t, err)
		require.Len(t, workers, 2)
		assert.Equal(t, "w1", workers[0].WorkerID)
		assert.Equal(t, WorkerBusy, workers[0].State)
		assert.Equal(t, "job1", workers[0].CurrentJob)
		assert.Equal(t, "http://nitter:8080", workers[0].ProxyURL, "registration survives heartbeats")

		stale, err := q.Stale(ctx, 2*time.Minute)
		require.NoError(t, err)
		var owners []string
		for _, j := range stale {
			owners = append(owners, j.WorkerID)
		}
		assert.ElementsMatch(t, []string{"w2", "w3"}, owners)
	})
}
