package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/shelfcrawl/internal/checkpoint"
	"github.com/nao1215/shelfcrawl/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "shelfcrawl.db"

// CrawlDB stores crawl checkpoints and run history in SQLite.
type CrawlDB struct {
	db     *sql.DB
	dbPath string

	// mu guards persisted.
	mu sync.Mutex
	// persisted caches the JSON of every record row written by this
	// process, keyed by URL.
	persisted map[string]string
}

var _ checkpoint.Store = (*CrawlDB)(nil)

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB inside dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:        db,
		dbPath:    dbPath,
		persisted: make(map[string]string),
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Single row marking that a checkpoint has been saved.
	CREATE TABLE IF NOT EXISTS checkpoint_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		saved_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frontier (
		position INTEGER PRIMARY KEY,
		url TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS records (
		url TEXT PRIMARY KEY,
		record_json TEXT NOT NULL,
		visited_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS retries (
		url TEXT PRIMARY KEY,
		attempts INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS failures (
		url TEXT PRIMARY KEY,
		attempts INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		outcome TEXT NOT NULL DEFAULT 'running',
		processed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Load reads the stored checkpoint.
// It returns checkpoint.ErrNoCheckpoint if nothing has been saved yet and an
// error wrapping checkpoint.ErrCorrupt if a stored record cannot be decoded.
func (cdb *CrawlDB) Load(ctx context.Context) (model.Checkpoint, error) {
	cp := model.NewCheckpoint()

	var savedAt string
	err := cdb.db.QueryRowContext(ctx, `SELECT saved_at FROM checkpoint_meta WHERE id = 1`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, fmt.Errorf("%s: %w", cdb.dbPath, checkpoint.ErrNoCheckpoint)
	}
	if err != nil {
		return cp, fmt.Errorf("failed to read checkpoint metadata: %w", err)
	}

	if cp.LinksToProcess, err = cdb.loadFrontier(ctx); err != nil {
		return model.NewCheckpoint(), err
	}

	records, err := cdb.loadRecords(ctx)
	if err != nil {
		return model.NewCheckpoint(), err
	}
	cp.ProcessedData = records

	if err := cdb.loadRetries(ctx, cp.RetryCounts); err != nil {
		return model.NewCheckpoint(), err
	}
	if err := cdb.loadFailures(ctx, cp.FailedLinks); err != nil {
		return model.NewCheckpoint(), err
	}

	cp.Normalize()
	return cp, nil
}

func (cdb *CrawlDB) loadFrontier(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url FROM frontier ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load frontier: %w", err)
	}
	defer rows.Close()

	links := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan frontier row: %w", err)
		}
		links = append(links, u)
	}
	return links, rows.Err()
}

func (cdb *CrawlDB) loadRecords(ctx context.Context) (map[string]model.Record, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, record_json FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]string)
	records := make(map[string]model.Record)
	for rows.Next() {
		var u, raw string
		if err := rows.Scan(&u, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		var rec model.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("record %s: %w: %w", u, checkpoint.ErrCorrupt, err)
		}
		records[u] = rec.Clone()
		loaded[u] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows read back are already on disk; the next Save can skip them.
	cdb.mu.Lock()
	for u, raw := range loaded {
		cdb.persisted[u] = raw
	}
	cdb.mu.Unlock()

	return records, nil
}

func (cdb *CrawlDB) loadRetries(ctx context.Context, into map[string]int) error {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, attempts FROM retries`)
	if err != nil {
		return fmt.Errorf("failed to load retries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		var n int
		if err := rows.Scan(&u, &n); err != nil {
			return fmt.Errorf("failed to scan retry row: %w", err)
		}
		into[u] = n
	}
	return rows.Err()
}

func (cdb *CrawlDB) loadFailures(ctx context.Context, into map[string]model.Failure) error {
	rows, err := cdb.db.QueryContext(ctx, `SELECT url, attempts, last_error FROM failures`)
	if err != nil {
		return fmt.Errorf("failed to load failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		var f model.Failure
		if err := rows.Scan(&u, &f.Attempts, &f.LastError); err != nil {
			return fmt.Errorf("failed to scan failure row: %w", err)
		}
		into[u] = f
	}
	return rows.Err()
}

// Save replaces the stored checkpoint with cp in a single transaction.
func (cdb *CrawlDB) Save(ctx context.Context, cp model.Checkpoint) (err error) {
	cp.Normalize()

	// Serialize records up front so an encoding error never leaves an
	// open transaction behind.
	cdb.mu.Lock()
	pending := make(map[string]string)
	for u, rec := range cp.ProcessedData {
		data, err := json.Marshal(rec)
		if err != nil {
			cdb.mu.Unlock()
			return fmt.Errorf("failed to serialize record %s: %w", u, err)
		}
		if prev, ok := cdb.persisted[u]; ok && prev == string(data) {
			continue
		}
		pending[u] = string(data)
	}
	cdb.mu.Unlock()

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Format(timeLayout)

	if _, err = tx.ExecContext(ctx, `DELETE FROM frontier`); err != nil {
		return fmt.Errorf("failed to clear frontier: %w", err)
	}
	for i, u := range cp.LinksToProcess {
		if _, err = tx.ExecContext(ctx, `INSERT INTO frontier (position, url) VALUES (?, ?)`, i, u); err != nil {
			return fmt.Errorf("failed to insert frontier url %s: %w", u, err)
		}
	}

	for u, raw := range pending {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO records (url, record_json, visited_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET record_json = excluded.record_json
		`, u, raw, now)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", u, err)
		}
	}

	// Drop rows for URLs the snapshot no longer has. During a crawl the
	// record set only grows, so this is normally a single COUNT.
	var stored int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	var removed []string
	if stored != len(cp.ProcessedData) {
		if removed, err = pruneRecords(ctx, tx, cp.ProcessedData); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM retries`); err != nil {
		return fmt.Errorf("failed to clear retries: %w", err)
	}
	for u, n := range cp.RetryCounts {
		if _, err = tx.ExecContext(ctx, `INSERT INTO retries (url, attempts) VALUES (?, ?)`, u, n); err != nil {
			return fmt.Errorf("failed to insert retry count %s: %w", u, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM failures`); err != nil {
		return fmt.Errorf("failed to clear failures: %w", err)
	}
	for u, f := range cp.FailedLinks {
		_, err = tx.ExecContext(ctx, `INSERT INTO failures (url, attempts, last_error) VALUES (?, ?, ?)`,
			u, f.Attempts, f.LastError)
		if err != nil {
			return fmt.Errorf("failed to insert failure %s: %w", u, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO checkpoint_meta (id, saved_at) VALUES (1, ?)
	ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at
	`, now)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint metadata: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	cdb.mu.Lock()
	for u, raw := range pending {
		cdb.persisted[u] = raw
	}
	for _, u := range removed {
		delete(cdb.persisted, u)
	}
	cdb.mu.Unlock()

	return nil
}

// pruneRecords deletes record rows whose URL is not in keep and returns the
// deleted URLs.
func pruneRecords(ctx context.Context, tx *sql.Tx, keep map[string]model.Record) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT url FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var stale []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan record url: %w", err)
		}
		if _, ok := keep[u]; !ok {
			stale = append(stale, u)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, u := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE url = ?`, u); err != nil {
			return nil, fmt.Errorf("failed to delete record %s: %w", u, err)
		}
	}
	return stale, nil
}
