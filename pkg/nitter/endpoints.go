package nitter

import (
	"fmt"
	"net/url"
	"strings"

	"hyperdrive/pkg/models"
)

// PermalinkBase is the canonical host used for post permalinks
const PermalinkBase = "https://twitter.com"

// RootURL returns the proxy's landing page, used as a health probe
func RootURL(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

// TimelineURL constructs the URL of a user's timeline page
func TimelineURL(base, user, cursor string) string {
	u := fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), url.PathEscape(user))
	if cursor != "" {
		params := url.Values{}
		params.Set("cursor", cursor)
		u += "?" + params.Encode()
	}
	return u
}

// SearchQuery builds the search expression for one user and window. The
// proxy's until bound is exclusive, matching the window.
func SearchQuery(user string, w models.Window) string {
	return fmt.Sprintf("from:%s since:%s until:%s",
		user, w.Since.Format(models.DateLayout), w.Until.Format(models.DateLayout))
}

// SearchURL constructs the URL of a search results page
func SearchURL(base, query, cursor string) string {
	params := url.Values{}
	params.Set("f", "tweets")
	params.Set("q", query)
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	return fmt.Sprintf("%s/search?%s", strings.TrimRight(base, "/"), params.Encode())
}

// Permalink returns the canonical URL of a post
func Permalink(handle, id string) string {
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/status/%s", PermalinkBase, handle, id)
}
