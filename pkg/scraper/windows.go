package scraper

import (
	"time"

	"hyperdrive/pkg/models"
)

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BuildWindows splits [start, end) into half-open windows of chunkDays days
// and returns them newest first. Chunks are anchored at start, so only the
// newest window may be shorter than chunkDays.
func BuildWindows(start, end time.Time, chunkDays int) []models.Window {
	start, end = Day(start), Day(end)
	if chunkDays <= 0 {
		chunkDays = 1
	}
	if !end.After(start) {
		return nil
	}

	var windows []models.Window
	for since := start; since.Before(end); {
		until := since.AddDate(0, 0, chunkDays)
		if until.After(end) {
			until = end
		}
		windows = append(windows, models.Window{Since: since, Until: until})
		since = until
	}

	for i, j := 0, len(windows)-1; i < j; i, j = i+1, j-1 {
		windows[i], windows[j] = windows[j], windows[i]
	}
	return windows
}

// DefaultSpan returns the span used when a job has no dates: spanDays days
// back from now, through the end of today.
func DefaultSpan(now time.Time, spanDays int) (time.Time, time.Time) {
	end := Day(now).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -spanDays), end
}
