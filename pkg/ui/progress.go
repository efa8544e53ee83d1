package ui

import (
	"fmt"
	"strings"
	"time"

	"hyperdrive/pkg/jobs"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Bar renders percent (0-100) as a fixed-width bar
func Bar(percent, width int) string {
	if width <= 0 {
		width = 20
	}
	switch {
	case percent < 0:
		percent = 0
	case percent > 100:
		percent = 100
	}
	filled := percent * width / 100
	return fmt.Sprintf("[%s%s] %3d%%",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		percent)
}

// StatusColor colors a job status
func StatusColor(s jobs.Status) string {
	switch s {
	case jobs.StatusCompleted:
		return Green(string(s))
	case jobs.StatusFailed:
		return Red(string(s))
	case jobs.StatusRunning:
		return Cyan(string(s))
	default:
		return Yellow(string(s))
	}
}

// PrintJob prints a job's state with a progress bar
func PrintJob(job *jobs.Job) {
	PrintInfo("Job", job.ID)
	PrintInfo("User", "@"+job.Username)
	fmt.Fprintf(Out, "%s: %s\n", Cyan("Status"), StatusColor(job.Status))
	fmt.Fprintf(Out, "%s %s\n", Bar(job.Progress, 30), Dim(job.CurrentStep))
	PrintInfo("Collected", fmt.Sprintf("%d tweets, %d retweets", job.TweetsScraped, job.RetweetsScraped))
	if job.WorkerID != "" {
		PrintInfo("Worker", job.WorkerID)
	}
	if job.StartedAt != nil {
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		PrintInfo("Elapsed", FormatDuration(end.Sub(*job.StartedAt)))
	}
	if job.Error != "" {
		PrintError("Error", job.Error)
	}
	if job.Analysis != "" {
		fmt.Fprintln(Out)
		fmt.Fprintln(Out, job.Analysis)
	}
}

// FormatDuration formats a duration as mm:ss or hh:mm:ss
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
