package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"hyperdrive/pkg/jobs"
)

// Snapshot is one poll of the queue
type Snapshot struct {
	Jobs        []*jobs.Job
	Workers     []jobs.Heartbeat
	QueueLength int64
	At          time.Time
}

// Source produces snapshots for the dashboard
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// QueueSource reads snapshots straight from a job queue
type QueueSource struct {
	Queue *jobs.Queue
	Limit int
}

// Snapshot implements Source
func (s *QueueSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	list, err := s.Queue.List(ctx, s.Limit)
	if err != nil {
		return nil, err
	}
	workers, err := s.Queue.Workers(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.Queue.QueueLength(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Jobs: list, Workers: workers, QueueLength: n, At: time.Now()}, nil
}

// Options tune the dashboard
type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// Model is the dashboard state
type Model struct {
	ctx    context.Context
	source Source
	opts   Options

	spinner spinner.Model
	bar     progress.Model

	snapshot   *Snapshot
	err        error
	refreshing bool

	width    int
	height   int
	showHelp bool
}

// SnapshotMsg carries the result of a poll
type SnapshotMsg struct {
	Snapshot *Snapshot
	Err      error
}

// TickMsg triggers the next poll
type TickMsg time.Time

// NewModel creates a dashboard over source
func NewModel(ctx context.Context, source Source, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))
	return &Model{
		ctx:     ctx,
		source:  source,
		opts:    opts,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
	}
}

// Init starts the spinner, the first poll and the refresh ticker
func (m *Model) Init() tea.Cmd {
	m.refreshing = true
	return tea.Batch(m.spinner.Tick, m.refresh(), m.tick())
}

func (m *Model) refresh() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		snap, err := source.Snapshot(ctx)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Snapshot returns the last successful poll
func (m *Model) Snapshot() *Snapshot {
	return m.snapshot
}

// Err returns the error of the last poll, if it failed
func (m *Model) Err() error {
	return m.err
}

// counts tallies the snapshot's jobs by status
func (m *Model) counts() map[jobs.Status]int {
	out := make(map[jobs.Status]int, 4)
	if m.snapshot == nil {
		return out
	}
	for _, job := range m.snapshot.Jobs {
		out[job.Status]++
	}
	return out
}

// stale reports whether a worker missed its heartbeat as of the snapshot
func (m *Model) stale(hb jobs.Heartbeat) bool {
	return m.snapshot.At.Sub(hb.Timestamp) > m.opts.StaleAfter
}
