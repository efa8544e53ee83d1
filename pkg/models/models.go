package models

import (
	"fmt"
	"time"
)

// Kind classifies a post relative to the account being scraped
type Kind string

const (
	KindOriginal Kind = "original"
	KindRepost   Kind = "repost"
	KindReply    Kind = "reply"
)

// KindSet is a set of accepted kinds
type KindSet map[Kind]bool

// Kinds builds a KindSet
func Kinds(kinds ...Kind) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// Has reports whether k is in the set. A nil set accepts everything.
func (s KindSet) Has(k Kind) bool {
	if s == nil {
		return true
	}
	return s[k]
}

// Stats holds the engagement counters shown under a post
type Stats struct {
	Replies int `json:"replies"`
	Reposts int `json:"retweets"`
	Quotes  int `json:"quotes"`
	Likes   int `json:"likes"`
}

// Post is a single scraped feed entry. ID is its identity.
type Post struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Timestamp      string   `json:"date"`
	Stats          Stats    `json:"stats"`
	Kind           Kind     `json:"kind"`
	OriginalAuthor string   `json:"original_author,omitempty"`
	Media          []string `json:"images,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// IsRepost reports whether the post is a repost of someone else's post
func (p Post) IsRepost() bool { return p.Kind == KindRepost }

// DateLayout is the day-granularity layout used for windows and job dates
const DateLayout = "2006-01-02"

// Window is a half-open date range [Since, Until) at day granularity
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Days returns the number of days covered by the window
func (w Window) Days() int {
	return int(w.Until.Sub(w.Since).Hours() / 24)
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since) && t.Before(w.Until)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Since.Format(DateLayout), w.Until.Format(DateLayout))
}
