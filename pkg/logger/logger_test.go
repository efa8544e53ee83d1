package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hyperdrive/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"console info", &config.LoggingConfig{Level: "info"}, false},
		{"json debug", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "hd.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"chatty", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.level)
		assert.Equal(t, tt.wantErr, err != nil, tt.level)
		assert.Equal(t, tt.expected, got, tt.level)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithField("job_id", "abc12345").
		WithFields(map[string]interface{}{"worker_id": "w1"}).
		InfoWithFields("job claimed", map[string]interface{}{
			"progress": 10,
			"elapsed":  1500 * time.Millisecond,
		})
	l.WithError(errors.New("boom")).Error("reset failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "job claimed", lines[0]["message"])
	assert.Equal(t, "abc12345", lines[0]["job_id"])
	assert.Equal(t, "w1", lines[0]["worker_id"])
	assert.Equal(t, float64(10), lines[0]["progress"])
	assert.Equal(t, "hyperdrive", lines[0]["app"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, zerolog.InfoLevel)
	_ = parent.WithField("child", true)
	parent.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["child"]
	assert.False(t, ok)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("x")).Info("ignored")
	})
}

func TestTestLoggerCapture(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("job_id", "j1")
	child.WarnWithFields("rate limited", map[string]interface{}{"page": 3})
	child.WithError(errors.New("probe failed")).Error("reset failed")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "j1", msgs[0].Fields["job_id"])
	assert.Equal(t, 3, msgs[0].Fields["page"])
	assert.EqualError(t, msgs[1].Error, "probe failed")
	assert.True(t, tl.HasMessage("rate limited"))
	assert.True(t, tl.HasError())
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestDomainHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "http://nitter/alice", 429, time.Second)
	LogPage(tl, 2, 7, 19, "abc")
	LogReset(tl, 1, 50, "se", nil)
	LogReset(tl, 2, 50, "ch", errors.New("probe failed"))
	LogJobTransition(tl, "j1", "w1", "pending", "running")

	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	page := tl.GetMessages()[1]
	assert.Equal(t, 7, page.Fields["new_items"])
	assert.Equal(t, true, page.Fields["has_cursor"])
}
