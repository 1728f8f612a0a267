package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one crawl invocation recorded in the runs table.
type Run struct {
	// ID is the run's UUID.
	ID string `json:"id"`

	// Seed is the seed URL the run started from.
	Seed string `json:"seed"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended. Zero while the run is active or if
	// the process died before recording the end.
	FinishedAt time.Time `json:"finished_at"`

	// Outcome is "running", "done", "interrupted" or "failed".
	Outcome string `json:"outcome"`

	// Processed is the number of pages the run visited.
	Processed int `json:"processed"`
}

// BeginRun records the start of a crawl run.
func (cdb *CrawlDB) BeginRun(ctx context.Context, id, seed string) error {
	_, err := cdb.db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, started_at, outcome) VALUES (?, ?, ?, 'running')`,
		id, seed, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// EndRun records how a crawl run ended.
func (cdb *CrawlDB) EndRun(ctx context.Context, id, outcome string, processed int) error {
	res, err := cdb.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ?, processed = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), outcome, processed, id)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
// A limit of zero or less returns every run.
func (cdb *CrawlDB) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, seed, started_at, finished_at, outcome, processed
	FROM runs
	ORDER BY started_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Seed, &started, &finished, &r.Outcome, &r.Processed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		if finished.Valid {
			r.FinishedAt = parseTimestamp(finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// timeLayout is a fixed-width layout so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the formats used to parse stored timestamps.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a stored timestamp, returning the zero time if no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
