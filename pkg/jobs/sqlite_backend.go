package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"hyperdrive/pkg/retry"
)

// popInterval is how often an empty SQLite queue is polled
const popInterval = 100 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS queue (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS workers (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
);`

// SQLiteBackend is a single-host Backend on one database file
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) SaveJob(ctx context.Context, id string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO jobs (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, id, data)
	return err
}

func (b *SQLiteBackend) LoadJob(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return data, err
}

func (b *SQLiteBackend) LoadJobs(ctx context.Context) ([][]byte, error) {
	return b.loadAll(ctx, `SELECT data FROM jobs ORDER BY created_at DESC`)
}

func (b *SQLiteBackend) Push(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO queue (id) VALUES (?)`, id)
	return err
}

// Pop deletes and returns the oldest queued id in one statement, polling
// until timeout when the queue is empty
func (b *SQLiteBackend) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		var id string
		err := b.db.QueryRowContext(ctx,
			`DELETE FROM queue WHERE seq = (SELECT seq FROM queue ORDER BY seq LIMIT 1) RETURNING id`).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil
		}
		if err := retry.Wait(ctx, min(popInterval, remaining)); err != nil {
			return "", err
		}
	}
}

func (b *SQLiteBackend) Len(ctx context.Context) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n)
	return n, err
}

func (b *SQLiteBackend) SaveWorker(ctx context.Context, id string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO workers (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, id, data)
	return err
}

func (b *SQLiteBackend) LoadWorker(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM workers WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

func (b *SQLiteBackend) LoadWorkers(ctx context.Context) ([][]byte, error) {
	return b.loadAll(ctx, `SELECT data FROM workers ORDER BY id`)
}

func (b *SQLiteBackend) loadAll(ctx context.Context, query string) ([][]byte, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
