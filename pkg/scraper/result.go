package scraper

import (
	"sync"

	"hyperdrive/pkg/models"
)

// Result is the outcome of a range or a whole mode. It is final once the
// scrape that produced it returns.
type Result struct {
	Posts            []models.Post `json:"posts"`
	Err              string        `json:"error,omitempty"`
	RateLimited      bool          `json:"rate_limited"`
	WindowsProcessed int           `json:"windows_processed"`
	PagesProcessed   int           `json:"pages_processed"`
	Resets           int           `json:"resets"`
	Capped           bool          `json:"capped"`
}

// OK reports whether the scrape finished without error. A capped scrape is OK.
func (r *Result) OK() bool {
	return r.Err == ""
}

// absorb appends a range result into an aggregate
func (r *Result) absorb(o *Result) {
	r.Posts = append(r.Posts, o.Posts...)
	r.PagesProcessed += o.PagesProcessed
	r.Resets += o.Resets
	if o.Capped {
		r.Capped = true
	}
	if o.RateLimited {
		r.RateLimited = true
	}
	if o.Err != "" {
		r.Err = o.Err
	}
}

// CorpusResult holds the outputs of both scrape modes
type CorpusResult struct {
	Reposts Result `json:"reposts"`
	Search  Result `json:"search"`
}

// Posts returns reposts followed by search posts
func (c *CorpusResult) Posts() []models.Post {
	out := make([]models.Post, 0, len(c.Reposts.Posts)+len(c.Search.Posts))
	out = append(out, c.Reposts.Posts...)
	return append(out, c.Search.Posts...)
}

// SeenSet tracks post ids already collected for a job
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Has reports whether id was already collected
func (s *SeenSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids collected
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
