package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildWindowsExample(t *testing.T) {
	w := BuildWindows(date(2024, 1, 1), date(2024, 3, 1), 30)
	require.Len(t, w, 2)
	assert.Equal(t, date(2024, 1, 31), w[0].Since)
	assert.Equal(t, date(2024, 3, 1), w[0].Until)
	assert.Equal(t, date(2024, 1, 1), w[1].Since)
	assert.Equal(t, date(2024, 1, 31), w[1].Until)
}

func TestBuildWindowsProperties(t *testing.T) {
	start := date(2023, 2, 11)
	for _, spanDays := range []int{1, 2, 7, 29, 30, 31, 59, 60, 61, 365, 366, 1000} {
		for _, chunk := range []int{1, 3, 7, 30, 31, 90, 400} {
			end := start.AddDate(0, 0, spanDays)
			ws := BuildWindows(start, end, chunk)
			require.NotEmpty(t, ws, "span=%d chunk=%d", spanDays, chunk)

			// Newest first, contiguous, disjoint
			assert.Equal(t, end, ws[0].Until)
			assert.Equal(t, start, ws[len(ws)-1].Since)
			total := 0
			for i, w := range ws {
				assert.True(t, w.Since.Before(w.Until), "non-empty window %s", w)
				assert.LessOrEqual(t, w.Days(), chunk)
				total += w.Days()
				if i > 0 {
					assert.Equal(t, ws[i-1].Since, w.Until, "windows must tile the span")
				}
			}
			assert.Equal(t, spanDays, total)
		}
	}
}

func TestBuildWindowsDegenerate(t *testing.T) {
	assert.Empty(t, BuildWindows(date(2024, 1, 2), date(2024, 1, 2), 30))
	assert.Empty(t, BuildWindows(date(2024, 1, 3), date(2024, 1, 2), 30))

	// Times are truncated to days
	ws := BuildWindows(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC), 0)
	require.Len(t, ws, 2)
	assert.Equal(t, date(2024, 1, 2), ws[0].Since)
}

func TestDefaultSpan(t *testing.T) {
	now := time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)
	since, until := DefaultSpan(now, 365)
	assert.Equal(t, date(2024, 6, 16), until)
	assert.Equal(t, date(2023, 6, 17), since)
	assert.True(t, now.Before(until))
}
