package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"hyperdrive/pkg/analysis"
	errs "hyperdrive/pkg/errors"
	"hyperdrive/pkg/jobs"
	"hyperdrive/pkg/logger"
)

// Version of the export document layout
const Version = 1

// Document is the exported form of a completed job
type Document struct {
	JobID           string           `json:"job_id"`
	Username        string           `json:"username"`
	StartDate       string           `json:"start_date,omitempty"`
	EndDate         string           `json:"end_date,omitempty"`
	Analysis        string           `json:"analysis"`
	Highlighted     []jobs.Highlight `json:"highlighted_tweets"`
	Items           []analysis.Item  `json:"all_tweets"`
	TweetsScraped   int              `json:"tweets_scraped"`
	RetweetsScraped int              `json:"retweets_scraped"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	ExportedAt      time.Time        `json:"exported_at"`
	Version         int              `json:"version"`
}

// FromJob builds the export document of a completed job
func FromJob(job *jobs.Job) (*Document, error) {
	if job.Status != jobs.StatusCompleted {
		return nil, errs.Newf(errs.ErrorTypeValidation, "job %s is %s, only completed jobs can be exported", job.ID, job.Status)
	}
	highlighted := job.HighlightedTweets
	if highlighted == nil {
		highlighted = []jobs.Highlight{}
	}
	items := job.AllTweets
	if items == nil {
		items = []analysis.Item{}
	}
	return &Document{
		JobID:           job.ID,
		Username:        job.Username,
		StartDate:       job.StartDate,
		EndDate:         job.EndDate,
		Analysis:        job.Analysis,
		Highlighted:     highlighted,
		Items:           items,
		TweetsScraped:   job.TweetsScraped,
		RetweetsScraped: job.RetweetsScraped,
		CompletedAt:     job.CompletedAt,
		Version:         Version,
	}, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileName returns "<username>_<id>.json" with path-unsafe characters replaced
func FileName(username, id string) string {
	return unsafeName.ReplaceAllString(username, "_") + "_" + unsafeName.ReplaceAllString(id, "_") + ".json"
}

// Manager writes export documents into one directory
type Manager struct {
	dir    string
	logger logger.Logger
	mu     sync.Mutex
}

// NewManager creates the output directory when missing
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to create export directory")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, logger: log}, nil
}

// Dir returns the output directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns where the export of a job is written
func (m *Manager) Path(username, id string) string {
	return filepath.Join(m.dir, FileName(username, id))
}

// Export writes the job's document atomically and returns its path
func (m *Manager) Export(job *jobs.Job) (string, error) {
	doc, err := FromJob(job)
	if err != nil {
		return "", err
	}
	doc.ExportedAt = time.Now().UTC()

	path := m.Path(job.Username, job.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := writeJSON(path, doc); err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to write export")
	}

	m.logger.InfoWithFields("job exported", map[string]interface{}{
		"job_id":   job.ID,
		"username": job.Username,
		"items":    len(doc.Items),
		"path":     path,
	})
	return path, nil
}

// Exists reports whether an export of the job is on disk
func (m *Manager) Exists(username, id string) bool {
	_, err := os.Stat(m.Path(username, id))
	return err == nil
}

// Load reads an export back. A missing file is a not_found error.
func (m *Manager) Load(username, id string) (*Document, error) {
	data, err := os.ReadFile(m.Path(username, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.ErrorTypeNotFound, "no export for job %s", id)
		}
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to read export")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to decode export")
	}
	return &doc, nil
}

// List returns the export file names in the directory, sorted
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to read export directory")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// writeJSON writes v to a temporary file, syncs it and renames it over path
func writeJSON(path string, v interface{}) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}
