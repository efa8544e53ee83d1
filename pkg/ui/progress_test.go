package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"hyperdrive/pkg/jobs"
)

func TestBar(t *testing.T) {
	assert.Equal(t, "[██████████] 100%", Bar(100, 10))
	assert.Equal(t, "[█████░░░░░]  50%", Bar(50, 10))
	assert.Equal(t, "[░░░░░░░░░░]   0%", Bar(-5, 10))
	assert.Equal(t, "[██████████] 100%", Bar(150, 10))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "01:05", FormatDuration(65*time.Second))
	assert.Equal(t, "02:00:03", FormatDuration(2*time.Hour+3*time.Second))
	assert.Equal(t, "00:00", FormatDuration(-time.Second))
}

func TestPrintJob(t *testing.T) {
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	defer func() { Out = prev }()

	started := time.Now().Add(-time.Minute)
	PrintJob(&jobs.Job{
		ID:          "job1",
		Username:    "alice",
		Status:      jobs.StatusFailed,
		Progress:    40,
		CurrentStep: "Scraping tweets...",
		Error:       "No tweets found",
		WorkerID:    "w-1",
		StartedAt:   &started,
	})

	out := buf.String()
	assert.Contains(t, out, "@alice")
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "Scraping tweets...")
	assert.Contains(t, out, "No tweets found")
	assert.Contains(t, out, "w-1")
}
