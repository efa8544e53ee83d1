package nitter

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperdrive/pkg/models"
)

func TestTimelineURL(t *testing.T) {
	assert.Equal(t, "http://n:8080/alice", TimelineURL("http://n:8080/", "alice", ""))
	assert.Equal(t, "http://n:8080/alice?cursor=DAAB%3D%3D", TimelineURL("http://n:8080", "alice", "DAAB=="))
}

func TestSearchQueryAndURL(t *testing.T) {
	w := models.Window{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	q := SearchQuery("alice", w)
	assert.Equal(t, "from:alice since:2024-01-01 until:2024-01-31", q)

	raw := SearchURL("http://n:8080", q, "")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/search", u.Path)
	assert.Equal(t, "tweets", u.Query().Get("f"))
	assert.Equal(t, q, u.Query().Get("q"))
	assert.False(t, u.Query().Has("cursor"))

	u, err = url.Parse(SearchURL("http://n:8080", q, "c1"))
	require.NoError(t, err)
	assert.Equal(t, "c1", u.Query().Get("cursor"))
}

func TestRootURLAndPermalink(t *testing.T) {
	assert.Equal(t, "http://n:8080/", RootURL("http://n:8080"))
	assert.Equal(t, "http://n:8080/", RootURL("http://n:8080/"))
	assert.Equal(t, "https://twitter.com/bob/status/5", Permalink("bob", "5"))
	assert.Empty(t, Permalink("", "5"))
}
