package jobs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/analysis"
)

func TestJobWindow(t *testing.T) {
	j := &Job{StartDate: "2024-01-01", EndDate: "2024-02-01"}
	since, until, err := j.Window()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", since.Format("2006-01-02"))
	assert.Equal(t, "2024-02-01", until.Format("2006-01-02"))

	since, until, err = (&Job{}).Window()
	require.NoError(t, err)
	assert.True(t, since.IsZero())
	assert.True(t, until.IsZero())

	_, _, err = (&Job{EndDate: "tomorrow"}).Window()
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func pagedJob(n int, flagged ...int) *Job {
	items := make([]analysis.Item, n)
	for i := range items {
		items[i] = analysis.Item{Index: i, ID: fmt.Sprint(i), Date: fmt.Sprintf("Jan %d, 2024 · 10:00 AM UTC", i+1)}
	}
	for _, i := range flagged {
		items[i].Flagged = true
	}
	return &Job{ID: "j1", Username: "alice", Analysis: "s", AllTweets: items}
}

func indices(items []analysis.Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Index
	}
	return out
}

func TestPageItems(t *testing.T) {
	job := pagedJob(5, 3)

	p := PageItems(job, 1, 2, true)
	assert.Equal(t, 5, p.TotalItems)
	assert.Equal(t, 1, p.TotalFlagged)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, []int{3, 0}, indices(p.Items))

	p = PageItems(job, 3, 2, true)
	assert.Equal(t, []int{4}, indices(p.Items))

	p = PageItems(job, 1, 2, false)
	assert.Equal(t, []int{4, 3}, indices(p.Items))

	p = PageItems(job, 9, 2, true)
	assert.Empty(t, p.Items)

	p = PageItems(job, 0, 0, true)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Len(t, p.Items, 5)

	// Stored order is untouched
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indices(job.AllTweets))
}

func TestHighlightsFrom(t *testing.T) {
	items := []analysis.Item{
		{Text: "a"},
		{Text: "b", Flagged: true, FlagReason: "why", URL: "u", Images: []string{"i"}},
	}
	assert.Equal(t, []Highlight{{Text: "b", Reason: "why", URL: "u", Images: []string{"i"}}}, HighlightsFrom(items))
	assert.Equal(t, []Highlight{}, HighlightsFrom(nil))
}
