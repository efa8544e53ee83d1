package jobs

import (
	"regexp"
	"strings"
	"time"

	"hyperdrive/pkg/analysis"
	errs "hyperdrive/pkg/errors"
	"hyperdrive/pkg/models"
)

// Status is a job lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Worker states reported by heartbeats
const (
	WorkerIdle = "idle"
	WorkerBusy = "busy"
)

// Highlight is the legacy per-item view of a flagged item
type Highlight struct {
	Text   string   `json:"text"`
	Reason string   `json:"reason"`
	URL    string   `json:"url"`
	Images []string `json:"images"`
}

// Job is one scrape-plus-analysis request and its results
type Job struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Status   Status `json:"status"`

	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	IncludeTweets   bool   `json:"include_tweets"`
	IncludeRetweets bool   `json:"include_retweets"`
	IncludeReplies  bool   `json:"include_replies"`
	CustomPrompt    string `json:"custom_prompt,omitempty"`

	Progress        int    `json:"progress"`
	CurrentStep     string `json:"current_step"`
	TweetsScraped   int    `json:"tweets_scraped"`
	RetweetsScraped int    `json:"retweets_scraped"`

	Analysis          string          `json:"analysis"`
	Themes            []string        `json:"themes"`
	HighlightedTweets []Highlight     `json:"highlighted_tweets"`
	AllTweets         []analysis.Item `json:"all_tweets,omitempty"`
	Error             string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	WorkerID    string     `json:"worker_id,omitempty"`
}

// Window returns the requested date bounds; zero values mean unbounded
func (j *Job) Window() (since, until time.Time, err error) {
	if j.StartDate != "" {
		if since, err = time.Parse(models.DateLayout, j.StartDate); err != nil {
			return since, until, errs.Wrap(errs.ErrorTypeValidation, err, "invalid start_date")
		}
	}
	if j.EndDate != "" {
		if until, err = time.Parse(models.DateLayout, j.EndDate); err != nil {
			return since, until, errs.Wrap(errs.ErrorTypeValidation, err, "invalid end_date")
		}
	}
	return since, until, nil
}

// Params are the caller-supplied fields of a new job
type Params struct {
	Username        string
	StartDate       string
	EndDate         string
	IncludeTweets   bool
	IncludeRetweets bool
	IncludeReplies  bool
	CustomPrompt    string
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)

// Normalize trims the username and its leading @
func (p *Params) Normalize() {
	p.Username = strings.TrimPrefix(strings.TrimSpace(p.Username), "@")
	p.StartDate = strings.TrimSpace(p.StartDate)
	p.EndDate = strings.TrimSpace(p.EndDate)
}

// Validate checks a normalized Params
func (p *Params) Validate() error {
	if !usernameRe.MatchString(p.Username) {
		return errs.Newf(errs.ErrorTypeValidation, "invalid username %q", p.Username)
	}
	if !p.IncludeTweets && !p.IncludeRetweets && !p.IncludeReplies {
		return errs.New(errs.ErrorTypeValidation, "nothing to scrape: enable tweets, retweets or replies")
	}
	j := Job{StartDate: p.StartDate, EndDate: p.EndDate}
	since, until, err := j.Window()
	if err != nil {
		return err
	}
	if !since.IsZero() && !until.IsZero() && !since.Before(until) {
		return errs.New(errs.ErrorTypeValidation, "start_date must be before end_date")
	}
	return nil
}

// Progress is a mid-run status update
type Progress struct {
	Percent         int
	Step            string
	TweetsScraped   int
	RetweetsScraped int
}

// Outcome is the result of a finished job
type Outcome struct {
	Analysis        string
	Themes          []string
	Highlighted     []Highlight
	Items           []analysis.Item
	TweetsScraped   int
	RetweetsScraped int
}

// HighlightsFrom builds the legacy highlighted view from flagged items
func HighlightsFrom(items []analysis.Item) []Highlight {
	out := []Highlight{}
	for _, it := range items {
		if !it.Flagged {
			continue
		}
		images := it.Images
		if images == nil {
			images = []string{}
		}
		out = append(out, Highlight{Text: it.Text, Reason: it.FlagReason, URL: it.URL, Images: images})
	}
	return out
}

// Heartbeat is a worker's last reported state. It is observational only.
type Heartbeat struct {
	WorkerID   string    `json:"worker_id"`
	State      string    `json:"status"`
	CurrentJob string    `json:"current_job,omitempty"`
	ProxyURL   string    `json:"nitter_url,omitempty"`
	Timestamp  time.Time `json:"last_heartbeat"`
}

// ItemsPage is one page of a finished job's items
type ItemsPage struct {
	JobID        string          `json:"job_id"`
	Username     string          `json:"username"`
	TotalItems   int             `json:"total_tweets"`
	TotalFlagged int             `json:"total_flagged"`
	Page         int             `json:"page"`
	PerPage      int             `json:"per_page"`
	TotalPages   int             `json:"total_pages"`
	Items        []analysis.Item `json:"tweets"`
	Analysis     string          `json:"analysis"`
}

// DefaultPerPage is used when a non-positive page size is requested
const DefaultPerPage = 20

// PageItems returns one page of job's items, flagged first then by date
// ascending, or newest first when flaggedFirst is false. Pages are 1-based.
func PageItems(job *Job, page, perPage int, flaggedFirst bool) *ItemsPage {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	sorted := append([]analysis.Item(nil), job.AllTweets...)
	if flaggedFirst {
		analysis.SortFlaggedFirst(sorted)
	} else {
		analysis.SortNewestFirst(sorted)
	}

	total := len(sorted)
	out := &ItemsPage{
		JobID:        job.ID,
		Username:     job.Username,
		TotalItems:   total,
		TotalFlagged: len(analysis.Flagged(sorted)),
		Page:         page,
		PerPage:      perPage,
		TotalPages:   (total + perPage - 1) / perPage,
		Items:        []analysis.Item{},
		Analysis:     job.Analysis,
	}

	start := (page - 1) * perPage
	if start >= total {
		return out
	}
	end := start + perPage
	if end > total {
		end = total
	}
	out.Items = sorted[start:end]
	return out
}
