package logger

import (
	"time"
)

// LogRequest logs one proxy HTTP round trip
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode == 429:
		l.WarnWithFields("HTTP request rate limited", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogPage logs the outcome of one scraped page
func LogPage(l Logger, page, added, total int, cursor string) {
	l.InfoWithFields("page scraped", map[string]interface{}{
		"page":       page,
		"new_items":  added,
		"total":      total,
		"has_cursor": cursor != "",
	})
}

// LogReset logs a rate-limit reset attempt
func LogReset(l Logger, count, max int, identity string, err error) {
	fields := map[string]interface{}{
		"reset":      count,
		"max_resets": max,
		"identity":   identity,
	}
	if err != nil {
		l.WithError(err).ErrorWithFields("reset failed", fields)
		return
	}
	l.WarnWithFields("reset completed", fields)
}

// LogJobTransition logs a job moving between states
func LogJobTransition(l Logger, jobID, workerID, from, to string) {
	l.InfoWithFields("job status changed", map[string]interface{}{
		"job_id":    jobID,
		"worker_id": workerID,
		"from":      from,
		"to":        to,
	})
}

// Timer is used to measure operation duration
type Timer struct {
	start  time.Time
	name   string
	logger Logger
}

// StartTimer creates a new timer for measuring operation duration
func StartTimer(l Logger, name string) *Timer {
	return &Timer{start: time.Now(), name: name, logger: l}
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.logger.DebugWithFields("operation completed", map[string]interface{}{
		"operation":   t.name,
		"duration_ms": d.Milliseconds(),
	})
	return d
}
