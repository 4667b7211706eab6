// Package database archives crawl results in SQLite.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/cametumbling/sitecrawl/internal/crawler"
)

// FileName is the database file created inside the storage directory.
const FileName = "sitecrawl.db"

// ErrCrawlNotFound is returned by LoadCrawl for an unknown ID.
var ErrCrawlNotFound = errors.New("crawl not found")

// ResultDB stores finished crawl sessions. It is safe for concurrent use.
type ResultDB struct {
	db     *sql.DB
	dbPath string
}

// CrawlSummary is one row of the archive listing.
type CrawlSummary struct {
	ID         string    `json:"id" yaml:"id"`
	Root       string    `json:"root" yaml:"root"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	PageCount  int       `json:"pageCount" yaml:"pageCount"`
	Failed     int64     `json:"failed" yaml:"failed"`
	Partial    bool      `json:"partial" yaml:"partial"`
	TimedOut   bool      `json:"timedOut" yaml:"timedOut"`
}

// Open opens or creates the archive in dir.
func Open(dir string) (*ResultDB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps per-connection
	// pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{db: db, dbPath: dbPath}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (r *ResultDB) Path() string {
	return r.dbPath
}

// Close closes the database connection.
func (r *ResultDB) Close() error {
	return r.db.Close()
}

func (r *ResultDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawls (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		page_count INTEGER NOT NULL,
		seen INTEGER NOT NULL,
		submitted INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		in_flight INTEGER NOT NULL,
		partial INTEGER NOT NULL,
		timed_out INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_started ON crawls(started_at);
	CREATE INDEX IF NOT EXISTS idx_crawls_root ON crawls(root);

	CREATE TABLE IF NOT EXISTS pages (
		crawl_id TEXT NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		children TEXT NOT NULL,
		PRIMARY KEY (crawl_id, position)
	);
	`
	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawl stores a finished session and its pages in one transaction.
func (r *ResultDB) SaveCrawl(ctx context.Context, result *crawler.Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawls (id, root, started_at, finished_at, page_count, seen,
		submitted, completed, failed, in_flight, partial, timed_out)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.Root.String(),
		result.StartedAt.UnixNano(), result.FinishedAt.UnixNano(),
		len(result.Pages), result.Seen,
		result.Stats.Submitted, result.Stats.Completed, result.Stats.Failed, result.Stats.InFlight,
		result.Partial, result.TimedOut,
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages (crawl_id, position, url, children) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, page := range result.Pages {
		children, err := json.Marshal(page.Links())
		if err != nil {
			return fmt.Errorf("failed to serialize links: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, result.ID, i, page.URL().String(), string(children)); err != nil {
			return fmt.Errorf("failed to insert page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl: %w", err)
	}
	return nil
}

// ListCrawls returns the most recent crawls first. A limit of zero or less
// returns every crawl.
func (r *ResultDB) ListCrawls(ctx context.Context, limit int) ([]CrawlSummary, error) {
	query := `
	SELECT id, root, started_at, finished_at, page_count, failed, partial, timed_out
	FROM crawls
	ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawls: %w", err)
	}
	defer rows.Close()

	summaries := []CrawlSummary{}
	for rows.Next() {
		var s CrawlSummary
		var started, finished int64
		if err := rows.Scan(&s.ID, &s.Root, &started, &finished, &s.PageCount, &s.Failed, &s.Partial, &s.TimedOut); err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.FinishedAt = time.Unix(0, finished)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// LoadCrawl rebuilds a stored session.
func (r *ResultDB) LoadCrawl(ctx context.Context, id string) (*crawler.Result, error) {
	var (
		root              string
		started, finished int64
		result            crawler.Result
	)
	err := r.db.QueryRowContext(ctx, `
	SELECT root, started_at, finished_at, seen, submitted, completed, failed, in_flight, partial, timed_out
	FROM crawls WHERE id = ?`, id).Scan(
		&root, &started, &finished, &result.Seen,
		&result.Stats.Submitted, &result.Stats.Completed, &result.Stats.Failed, &result.Stats.InFlight,
		&result.Partial, &result.TimedOut,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCrawlNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl: %w", err)
	}

	result.ID = id
	result.StartedAt = time.Unix(0, started)
	result.FinishedAt = time.Unix(0, finished)
	if result.Root, err = crawler.ParseRoot(root); err != nil {
		return nil, fmt.Errorf("stored root %q: %w", root, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT url, children FROM pages WHERE crawl_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	result.Pages = []crawler.PageRecord{}
	for rows.Next() {
		var rawURL, rawChildren string
		if err := rows.Scan(&rawURL, &rawChildren); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pageURL, err := crawler.ParseRoot(rawURL)
		if err != nil {
			return nil, fmt.Errorf("stored page %q: %w", rawURL, err)
		}
		var children []crawler.CanonicalURL
		if err := json.Unmarshal([]byte(rawChildren), &children); err != nil {
			return nil, fmt.Errorf("failed to deserialize links: %w", err)
		}
		result.Pages = append(result.Pages, crawler.NewPageRecord(pageURL, children))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteCrawl removes a stored session and its pages.
func (r *ResultDB) DeleteCrawl(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM crawls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete crawl: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrCrawlNotFound, id)
	}
	return nil
}
