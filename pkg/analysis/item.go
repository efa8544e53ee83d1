package analysis

import (
	"sort"
	"strings"
	"time"

	"hyperdrive/pkg/models"
)

// Item is one indexed post as sent to the completion service and stored on
// the finished job. Index is the position in the job's collection and never
// changes after indexing.
type Item struct {
	Index          int      `json:"index"`
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Date           string   `json:"date"`
	URL            string   `json:"url"`
	IsRepost       bool     `json:"is_retweet"`
	OriginalAuthor string   `json:"original_author,omitempty"`
	Images         []string `json:"images"`
	Flagged        bool     `json:"flagged"`
	FlagReason     string   `json:"flag_reason,omitempty"`
}

// Flag marks the item at Index as notable
type Flag struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// FromPosts indexes posts in order
func FromPosts(posts []models.Post) []Item {
	items := make([]Item, 0, len(posts))
	for i, p := range posts {
		id := p.ID
		if id == "" {
			id = idFromURL(p.URL)
		}
		images := p.Media
		if images == nil {
			images = []string{}
		}
		items = append(items, Item{
			Index:          i,
			ID:             id,
			Text:           p.Text,
			Date:           p.Timestamp,
			URL:            p.URL,
			IsRepost:       p.IsRepost(),
			OriginalAuthor: p.OriginalAuthor,
			Images:         images,
		})
	}
	return items
}

func idFromURL(u string) string {
	_, rest, ok := strings.Cut(u, "/status/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "?")
	return id
}

// Merge applies flags to items by index and returns how many were applied.
// Flags pointing outside the collection are ignored.
func Merge(items []Item, flags []Flag) int {
	applied := 0
	for _, f := range flags {
		if f.Index < 0 || f.Index >= len(items) {
			continue
		}
		items[f.Index].Flagged = true
		items[f.Index].FlagReason = f.Reason
		applied++
	}
	return applied
}

// Flagged returns the flagged items in their current order
func Flagged(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Flagged {
			out = append(out, it)
		}
	}
	return out
}

// dateLayouts are the timestamp formats the proxy renders
var dateLayouts = []string{
	"Jan 2, 2006 · 3:04 PM MST",
	time.RFC3339,
	models.DateLayout,
}

// Time parses the item's display date
func (it Item) Time() (time.Time, bool) {
	s := strings.TrimSpace(it.Date)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateBefore orders dated items by time, ascending or (newest) descending.
// Items whose date does not parse sort after every dated item and keep their
// relative order.
func dateBefore(a, b Item, newest bool) bool {
	ta, okA := a.Time()
	tb, okB := b.Time()
	switch {
	case okA && okB:
		if newest {
			return ta.After(tb)
		}
		return ta.Before(tb)
	case okA:
		return true
	default:
		return false
	}
}

// SortFlaggedFirst orders flagged items first, then by date ascending with
// undated items last.
// Index values are kept.
func SortFlaggedFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Flagged != items[j].Flagged {
			return items[i].Flagged
		}
		return dateBefore(items[i], items[j], false)
	})
}

// SortNewestFirst orders items by date descending, undated items last
func SortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return dateBefore(items[i], items[j], true)
	})
}
