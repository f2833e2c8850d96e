package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	errs "mediacrawl/pkg/errors"
)

// Attempt is one recorded download attempt
type Attempt struct {
	RunID    string
	URL      string
	Filename string
	Outcome  string
	Reason   string
	Bytes    int64
	Duration time.Duration
	At       time.Time
}

// Totals aggregates every attempt in the journal
type Totals struct {
	Runs       int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Journal is a SQLite-backed log of download attempts across runs. It is
// informational only; the download directory remains the dedup source.
type Journal struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "create history directory")
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "open history")
	}

	// one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, dbPath: path}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "enable WAL mode")
	}
	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "create tables")
	}
	return j, nil
}

// Path returns the database file path
func (j *Journal) Path() string {
	return j.dbPath
}

// Close closes the database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		filename TEXT,
		outcome TEXT NOT NULL,
		reason TEXT,
		bytes INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);
	CREATE INDEX IF NOT EXISTS idx_attempts_at ON attempts(at);
	`
	_, err := j.db.ExecContext(context.Background(), schema)
	return err
}

// Record appends an attempt. A zero At is stamped with the current time.
func (j *Journal) Record(ctx context.Context, a Attempt) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	query := `
	INSERT INTO attempts (run_id, url, filename, outcome, reason, bytes, duration_ms, at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		a.RunID, a.URL, a.Filename, a.Outcome, a.Reason,
		a.Bytes, a.Duration.Milliseconds(), a.At.UnixNano(),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "record attempt")
	}
	return nil
}

// Totals counts attempts per outcome across all runs
func (j *Journal) Totals(ctx context.Context) (Totals, error) {
	query := `
	SELECT
		COUNT(DISTINCT run_id),
		COALESCE(SUM(CASE WHEN outcome = 'downloaded' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN outcome = 'skipped' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(bytes), 0)
	FROM attempts
	`
	var t Totals
	err := j.db.QueryRowContext(ctx, query).Scan(&t.Runs, &t.Downloaded, &t.Skipped, &t.Failed, &t.Bytes)
	if err != nil {
		return Totals{}, errs.Wrap(errs.ErrorTypeStorage, err, "query totals")
	}
	return t, nil
}

// RecentFailures returns up to limit failed attempts, newest first
func (j *Journal) RecentFailures(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT run_id, url, filename, outcome, reason, bytes, duration_ms, at
	FROM attempts
	WHERE outcome = 'failed'
	ORDER BY at DESC, id DESC
	LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "query failures")
	}
	defer rows.Close()

	var results []Attempt
	for rows.Next() {
		var (
			a          Attempt
			filename   sql.NullString
			reason     sql.NullString
			durationMS int64
			at         int64
		)
		if err := rows.Scan(&a.RunID, &a.URL, &filename, &a.Outcome, &reason, &a.Bytes, &durationMS, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Filename = filename.String
		a.Reason = reason.String
		a.Duration = time.Duration(durationMS) * time.Millisecond
		a.At = time.Unix(0, at)
		results = append(results, a)
	}
	return results, rows.Err()
}
