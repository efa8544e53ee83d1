package nitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/models"
	"hyperdrive/pkg/nitter/nittertest"
)

const base = "http://nitter.local:8080"

func TestParsePageExtractsPosts(t *testing.T) {
	posts := []models.Post{
		{
			ID:        "101",
			Text:      "hello world",
			Timestamp: "Mar 3, 2024 · 9:15 PM UTC",
			Kind:      models.KindOriginal,
			Stats:     models.Stats{Replies: 2, Reposts: 3, Quotes: 1, Likes: 40},
			Media:     []string{"/pic/media%2Fabc.jpg", "https://cdn.example/x.png"},
		},
		{ID: "102", Text: "shared", Kind: models.KindRepost, OriginalAuthor: "bob"},
		{ID: "103", Text: "@bob agreed", Kind: models.KindReply},
	}

	page := ParsePage(strings.NewReader(nittertest.Page(posts, "DAABCAAA", false)), base)

	require.Equal(t, StatusOK, page.Status)
	require.Len(t, page.Posts, 3)
	assert.Equal(t, "DAABCAAA", page.Cursor)
	assert.False(t, page.TimelineEnd)

	first := page.Posts[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "hello world", first.Text)
	assert.Equal(t, "Mar 3, 2024 · 9:15 PM UTC", first.Timestamp)
	assert.Equal(t, models.KindOriginal, first.Kind)
	assert.Equal(t, "https://twitter.com/alice/status/101", first.URL)
	assert.Equal(t, models.Stats{Replies: 2, Reposts: 3, Quotes: 1, Likes: 40}, first.Stats)
	assert.Equal(t, []string{base + "/pic/media%2Fabc.jpg", "https://cdn.example/x.png"}, first.Media)

	repost := page.Posts[1]
	assert.Equal(t, models.KindRepost, repost.Kind)
	assert.Equal(t, "bob", repost.OriginalAuthor)
	assert.Equal(t, "https://twitter.com/bob/status/102", repost.URL)

	assert.Equal(t, models.KindReply, page.Posts[2].Kind)
	assert.Empty(t, page.Posts[2].OriginalAuthor)
}

func TestParsePageGeneratedOriginals(t *testing.T) {
	a := nittertest.Originals("a", 2)
	b := nittertest.Originals("b", 2)
	page := ParsePage(strings.NewReader(nittertest.Page(append(a, b...), "c2", false)), base)

	require.Len(t, page.Posts, 4)
	assert.Equal(t, "c2", page.Cursor)
	seen := map[string]bool{}
	for i, p := range page.Posts {
		assert.Regexp(t, `^\d+$`, p.ID)
		assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
		seen[p.ID] = true
		assert.Equal(t, append(a, b...)[i].ID, p.ID)
	}
	assert.Equal(t, "post a1", page.Posts[0].Text)
}

func TestParsePageMarkers(t *testing.T) {
	page := ParsePage(strings.NewReader(nittertest.Page(nil, "", true)), base)
	assert.Equal(t, StatusOK, page.Status)
	assert.Empty(t, page.Posts)
	assert.Empty(t, page.Cursor)
	assert.True(t, page.TimelineEnd)

	// Zero posts with a cursor is a normal page
	page = ParsePage(strings.NewReader(nittertest.Page(nil, "next", false)), base)
	assert.Equal(t, StatusOK, page.Status)
	assert.Equal(t, "next", page.Cursor)
}

func TestParsePageErrorPanel(t *testing.T) {
	tests := []struct {
		text string
		want Status
	}{
		{"Instance has been rate limited.", StatusRateLimited},
		{"RATE LIMITED", StatusRateLimited},
		{`User "ghost" not found`, StatusNotFound},
		{"Tweet unavailable", StatusFatal},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			page := ParsePage(strings.NewReader(nittertest.ErrorPanel(tt.text)), base)
			assert.Equal(t, tt.want, page.Status)
			assert.Equal(t, tt.text, page.ErrorText)
			assert.Empty(t, page.Posts)
		})
	}
}

func TestParsePageSkipsItemsWithoutStatusLink(t *testing.T) {
	doc := `<div class="timeline-item"><a class="tweet-link" href="/alice">x</a></div>
<div class="timeline-item"><div class="tweet-content">no link</div></div>`
	page := ParsePage(strings.NewReader(doc), base)
	assert.Equal(t, StatusOK, page.Status)
	assert.Empty(t, page.Posts)
}

func TestParsePageGarbage(t *testing.T) {
	page := ParsePage(strings.NewReader("\x00\x01 not html {"), base)
	assert.Equal(t, StatusOK, page.Status)
	assert.Empty(t, page.Posts)
}

func TestParseStat(t *testing.T) {
	tests := map[string]int{
		"":       0,
		"  ":     0,
		"7":      7,
		"1,024":  1024,
		"1.2K":   1200,
		"2.3k":   2300,
		"15K":    15000,
		"3M":     3000000,
		"1.5M":   1500000,
		"n/a":    0,
		" 42 ":   42,
		"12,345": 12345,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseStat(in), "input %q", in)
	}
}

func TestStatValueSpanSibling(t *testing.T) {
	doc := `<div class="timeline-item"><a class="tweet-link" href="/alice/status/9"></a>
<span class="tweet-stat"><span class="icon-container icon-heart"></span><span>1.1K</span></span></div>`
	page := ParsePage(strings.NewReader(doc), base)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 1100, page.Posts[0].Stats.Likes)
}
