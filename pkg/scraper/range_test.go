package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/config"
	errs "hyperdrive/pkg/errors"
	"hyperdrive/pkg/logger"
	"hyperdrive/pkg/models"
	"hyperdrive/pkg/nitter"
	"hyperdrive/pkg/nitter/nittertest"
	"hyperdrive/pkg/ratelimit"
)

// scriptFetcher serves pages from a function of the call number and URL
type scriptFetcher struct {
	mu    sync.Mutex
	urls  []string
	serve func(n int, url string) *nitter.Page
}

func (f *scriptFetcher) FetchPage(ctx context.Context, url string) (*nitter.Page, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	n := len(f.urls)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.serve(n, url), nil
}

func (f *scriptFetcher) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// fakeResetter fails once its budget is used up
type fakeResetter struct {
	calls atomic.Int32
	max   int32
}

func (r *fakeResetter) Reset(ctx context.Context) error {
	if r.calls.Add(1) > r.max {
		return errs.New(errs.ErrorTypeRecoveryExhausted, "reset limit reached")
	}
	return nil
}

func okPage(cursor string, posts ...models.Post) *nitter.Page {
	return &nitter.Page{Status: nitter.StatusOK, Posts: posts, Cursor: cursor}
}

func post(id string, kind models.Kind) models.Post {
	return models.Post{ID: id, Text: "text " + id, Kind: kind}
}

func cursorURL(cursor string) string { return "page?cursor=" + cursor }

func newRange(f Fetcher, r *fakeResetter, seen *SeenSet) *RangeScraper {
	return NewRangeScraper(f, r, ratelimit.NoDelay{}, seen, logger.NewTestLogger())
}

func allKinds() models.KindSet {
	return models.Kinds(models.KindOriginal, models.KindRepost, models.KindReply)
}

func TestRangeFollowsCursorsUntilExhausted(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		switch n {
		case 1:
			return okPage("c1", post("1", models.KindOriginal), post("2", models.KindOriginal))
		case 2:
			return okPage("c2", post("3", models.KindOriginal))
		default:
			return okPage("", post("4", models.KindOriginal))
		}
	}}

	res := newRange(f, &fakeResetter{}, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})

	assert.True(t, res.OK())
	assert.Len(t, res.Posts, 4)
	assert.Equal(t, 3, res.PagesProcessed)
	assert.Equal(t, []string{cursorURL(""), cursorURL("c1"), cursorURL("c2")}, f.URLs())
}

func TestRangeStopsAfterThirdEmptyPage(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		if n == 1 {
			return okPage("c1", post("1", models.KindOriginal))
		}
		// Same post again: nothing new, but a cursor keeps coming
		return okPage(fmt.Sprintf("c%d", n), post("1", models.KindOriginal))
	}}

	res := newRange(f, &fakeResetter{}, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})

	assert.True(t, res.OK())
	assert.Len(t, res.Posts, 1)
	assert.Len(t, f.URLs(), 4, "first page plus exactly three empty pages")
}

func TestRangeEmptyCounterResetsOnNewPosts(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		switch n {
		case 1, 2, 4, 5, 6:
			return okPage(fmt.Sprintf("c%d", n))
		case 3:
			return okPage("c3", post("x", models.KindOriginal))
		}
		t.Fatalf("unexpected fetch %d", n)
		return nil
	}}

	res := newRange(f, &fakeResetter{}, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})
	assert.Len(t, res.Posts, 1)
	assert.Len(t, f.URLs(), 6)
}

func TestRangeReusesCursorAfterReset(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		switch n {
		case 1:
			return okPage("c1", post("1", models.KindOriginal))
		case 2:
			return &nitter.Page{Status: nitter.StatusRateLimited}
		case 3:
			return &nitter.Page{Status: nitter.StatusTransient, ErrorText: "HTTP error: 502"}
		default:
			return okPage("", post("2", models.KindOriginal))
		}
	}}
	r := &fakeResetter{max: 10}

	res := newRange(f, r, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})

	assert.True(t, res.OK())
	assert.Equal(t, 2, res.Resets)
	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, []string{cursorURL(""), cursorURL("c1"), cursorURL("c1"), cursorURL("c1")}, f.URLs())
	assert.Len(t, res.Posts, 2)
}

func TestRangeFailsWhenRecoveryFails(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		if n == 1 {
			return okPage("c1", post("1", models.KindOriginal))
		}
		return &nitter.Page{Status: nitter.StatusRateLimited}
	}}
	r := &fakeResetter{max: 2}

	res := newRange(f, r, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})

	assert.False(t, res.OK())
	assert.True(t, res.RateLimited)
	assert.Contains(t, res.Err, "reset limit reached")
	assert.Equal(t, 3, res.Resets)
	assert.Len(t, res.Posts, 1, "posts gathered before the failure are kept")
}

func TestRangeNotFoundAndFatal(t *testing.T) {
	tests := []struct {
		name    string
		page    *nitter.Page
		wantErr string
	}{
		{"not found", &nitter.Page{Status: nitter.StatusNotFound}, "User @ghost not found"},
		{"fatal panel", &nitter.Page{Status: nitter.StatusFatal, ErrorText: "Tweet unavailable"}, "Tweet unavailable"},
		{"fatal status", &nitter.Page{Status: nitter.StatusFatal}, "proxy error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptFetcher{serve: func(int, string) *nitter.Page { return tt.page }}
			r := &fakeResetter{max: 10}
			res := newRange(f, r, nil).Run(context.Background(), RangeRequest{
				Account: "ghost", URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
			})
			assert.Equal(t, tt.wantErr, res.Err)
			assert.False(t, res.RateLimited)
			assert.Equal(t, int32(0), r.calls.Load(), "no recovery for terminal errors")
			assert.Len(t, f.URLs(), 1)
		})
	}
}

func TestRangeFiltersKindsAndSharesSeenSet(t *testing.T) {
	seen := NewSeenSet()
	seen.Add("1")

	f := &scriptFetcher{serve: func(int, string) *nitter.Page {
		return okPage("",
			post("1", models.KindOriginal),
			post("2", models.KindRepost),
			post("3", models.KindReply),
			post("4", models.KindOriginal),
		)
	}}
	res := newRange(f, &fakeResetter{}, seen).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: models.Kinds(models.KindOriginal, models.KindReply), EmptyPageThreshold: 3,
	})

	var ids []string
	for _, p := range res.Posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"3", "4"}, ids)
	assert.False(t, seen.Has("2"), "filtered kinds are not marked seen")
	assert.Equal(t, 3, seen.Len())
}

func TestRangeLimitCaps(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		return okPage(fmt.Sprintf("c%d", n),
			post(fmt.Sprintf("%da", n), models.KindOriginal),
			post(fmt.Sprintf("%db", n), models.KindOriginal),
		)
	}}
	res := newRange(f, &fakeResetter{}, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3, Limit: 3,
	})
	assert.True(t, res.OK())
	assert.True(t, res.Capped)
	assert.Len(t, res.Posts, 3)
	assert.Len(t, f.URLs(), 2)
}

func TestRangeStopsOnTimelineEnd(t *testing.T) {
	f := &scriptFetcher{serve: func(int, string) *nitter.Page {
		p := okPage("more", post("1", models.KindRepost))
		p.TimelineEnd = true
		return p
	}}
	res := newRange(f, &fakeResetter{}, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 5,
	})
	assert.Len(t, res.Posts, 1)
	assert.Len(t, f.URLs(), 1)
}

func TestRangeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		cancel()
		return okPage("c", post(fmt.Sprint(n), models.KindOriginal))
	}}
	rs := NewRangeScraper(f, &fakeResetter{}, ratelimit.NewFixedDelay(time.Hour), nil, logger.NewTestLogger())
	res := rs.Run(ctx, RangeRequest{URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3})
	assert.False(t, res.OK())
	assert.Contains(t, res.Err, "canceled")
	assert.Len(t, res.Posts, 1)
}

// scriptedProxy serves nitter pages over HTTP: pages are returned in order
// and the request numbers listed in limited get a 429 instead.
type scriptedProxy struct {
	pages    []string
	limited  map[int]bool
	requests atomic.Int32
	cursors  []string
	mu       sync.Mutex
}

func (p *scriptedProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(p.requests.Add(1))
	p.mu.Lock()
	p.cursors = append(p.cursors, r.URL.Query().Get("cursor"))
	p.mu.Unlock()
	if p.limited[n] {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	idx := 0
	for i := 1; i < n; i++ {
		if !p.limited[i] {
			idx++
		}
	}
	if idx >= len(p.pages) {
		_, _ = w.Write([]byte(nittertest.Page(nil, "", true)))
		return
	}
	_, _ = w.Write([]byte(p.pages[idx]))
}

func TestRangeOverHTTP(t *testing.T) {
	proxy := &scriptedProxy{
		pages: []string{
			nittertest.Page(nittertest.Originals("a", 2), "cur1", false),
			nittertest.Page(nittertest.Originals("b", 3), "", false),
		},
		limited: map[int]bool{2: true},
	}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	cfg := config.DefaultConfig().Proxy
	cfg.BaseURL = srv.URL
	client := nitter.NewClient(&cfg, nil, logger.NewTestLogger())
	r := &fakeResetter{max: 5}

	res := newRange(client, r, nil).Run(context.Background(), RangeRequest{
		Account: "alice",
		URL: func(cursor string) string {
			return nitter.TimelineURL(srv.URL, "alice", cursor)
		},
		Kinds:              allKinds(),
		EmptyPageThreshold: 3,
	})

	require.True(t, res.OK(), res.Err)
	assert.Len(t, res.Posts, 5)
	assert.Equal(t, 1, res.Resets)
	assert.Equal(t, []string{"", "cur1", "cur1"}, proxy.cursors)
	for _, p := range res.Posts {
		assert.True(t, strings.HasPrefix(p.URL, "https://twitter.com/alice/status/"))
	}
}

func TestRangeResetErrorKeepsType(t *testing.T) {
	f := &scriptFetcher{serve: func(int, string) *nitter.Page {
		return &nitter.Page{Status: nitter.StatusTransient}
	}}
	r := resetFunc(func(context.Context) error {
		return errs.New(errs.ErrorTypeProxyUnavailable, "proxy not responding after reset")
	})
	res := NewRangeScraper(f, r, nil, nil, logger.NewTestLogger()).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})
	assert.True(t, res.RateLimited, "a failed recovery ends the range as rate limited")
	assert.Contains(t, res.Err, "proxy not responding")
}

func TestRangeTransientExhaustsRecovery(t *testing.T) {
	f := &scriptFetcher{serve: func(n int, url string) *nitter.Page {
		if n == 1 {
			return okPage("c1", post("1", models.KindOriginal))
		}
		return &nitter.Page{Status: nitter.StatusTransient, ErrorText: "HTTP error: 502"}
	}}
	r := &fakeResetter{max: 1}

	res := newRange(f, r, nil).Run(context.Background(), RangeRequest{
		URL: cursorURL, Kinds: allKinds(), EmptyPageThreshold: 3,
	})

	assert.False(t, res.OK())
	assert.True(t, res.RateLimited)
	assert.Contains(t, res.Err, "reset limit reached")
	assert.Equal(t, 2, res.Resets)
	assert.Len(t, res.Posts, 1)
	assert.Len(t, f.URLs(), 3)
}

type resetFunc func(ctx context.Context) error

func (f resetFunc) Reset(ctx context.Context) error { return f(ctx) }
