package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		summary  string
		flags    []Flag
		fallback bool
	}{
		{
			name:    "strict json",
			raw:     `{"summary": "ok", "flagged": [{"index": 1, "reason": "rude"}]}`,
			summary: "ok",
			flags:   []Flag{{Index: 1, Reason: "rude"}},
		},
		{
			name:    "code fence",
			raw:     "```json\n{\"summary\": \"fenced\", \"flagged\": []}\n```",
			summary: "fenced",
			flags:   []Flag{},
		},
		{
			name:    "embedded object",
			raw:     "Sure, here you go:\n{\"summary\": \"inner\", \"flagged\": [{\"index\": \"7\", \"reason\": \"x\"}]}\nThanks!",
			summary: "inner",
			flags:   []Flag{{Index: 7, Reason: "x"}},
		},
		{
			name:    "legacy indices",
			raw:     `{"summary": "s", "flagged_indices": [2, "3", 4.0]}`,
			summary: "s",
			flags:   []Flag{{Index: 2}, {Index: 3}, {Index: 4}},
		},
		{
			name:    "highlighted tweets",
			raw:     `{"summary": "s", "highlighted_tweets": [{"index": 0, "reason": "r"}]}`,
			summary: "s",
			flags:   []Flag{{Index: 0, Reason: "r"}},
		},
		{
			name:  "bare list",
			raw:   `[5, "6"]`,
			flags: []Flag{{Index: 5}, {Index: 6}},
		},
		{
			name:    "bad entries are skipped",
			raw:     `{"summary": "s", "flagged": [{"index": "x"}, {"reason": "no index"}, 1.5, null, {"index": 9}]}`,
			summary: "s",
			flags:   []Flag{{Index: 9}},
		},
		{
			name:     "plain text",
			raw:      "I could not produce JSON today.",
			summary:  "I could not produce JSON today.",
			flags:    []Flag{},
			fallback: true,
		},
		{
			name:     "broken json",
			raw:      `{"summary": "unterminated`,
			summary:  `{"summary": "unterminated`,
			flags:    []Flag{},
			fallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseResponse(tt.raw)
			assert.Equal(t, tt.summary, p.Summary)
			assert.Equal(t, tt.flags, p.Flags)
			assert.Equal(t, tt.fallback, p.Fallback)
			assert.Equal(t, tt.raw, p.Raw)
		})
	}
}

func TestParseIndex(t *testing.T) {
	n, ok := parseIndex([]byte(`12`))
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = parseIndex([]byte(`" 3 "`))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = parseIndex([]byte(`true`))
	assert.False(t, ok)
	_, ok = parseIndex(nil)
	assert.False(t, ok)
}
