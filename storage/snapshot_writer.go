package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"reviews-refresh/models"
	"reviews-refresh/utils"
)

// Snapshot is one historical result row.
type Snapshot struct {
	RunID        string
	Slug         string
	PlaceID      string
	Name         string
	Rating       float64
	TotalRatings int
	FetchedAt    string
}

// dialect holds the statements that differ between drivers.
type dialect struct {
	driver  string
	migrate []string
	insert  string
	history string
}

var dialects = map[string]dialect{
	"postgres": {
		driver: "postgres",
		migrate: []string{
			`CREATE TABLE IF NOT EXISTS review_snapshots (
				run_id        VARCHAR(36)  NOT NULL,
				slug          TEXT         NOT NULL,
				place_id      TEXT         NOT NULL,
				name          TEXT         NOT NULL,
				rating        NUMERIC(2,1) NOT NULL DEFAULT 0,
				total_ratings INTEGER      NOT NULL DEFAULT 0,
				payload       JSONB        NOT NULL,
				fetched_at    TIMESTAMPTZ  NOT NULL,
				PRIMARY KEY (run_id, slug)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_review_snapshots_slug ON review_snapshots(slug, fetched_at)`,
		},
		insert: `INSERT INTO review_snapshots
			(run_id, slug, place_id, name, rating, total_ratings, payload, fetched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, slug) DO NOTHING`,
		history: `SELECT run_id, slug, place_id, name, rating, total_ratings, fetched_at::text
			FROM review_snapshots WHERE slug = $1 ORDER BY fetched_at DESC LIMIT $2`,
	},
	"sqlite": {
		driver: "sqlite",
		migrate: []string{
			`CREATE TABLE IF NOT EXISTS review_snapshots (
				run_id        TEXT    NOT NULL,
				slug          TEXT    NOT NULL,
				place_id      TEXT    NOT NULL,
				name          TEXT    NOT NULL,
				rating        REAL    NOT NULL DEFAULT 0,
				total_ratings INTEGER NOT NULL DEFAULT 0,
				payload       TEXT    NOT NULL,
				fetched_at    TEXT    NOT NULL,
				PRIMARY KEY (run_id, slug)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_review_snapshots_slug ON review_snapshots(slug, fetched_at)`,
		},
		insert: `INSERT INTO review_snapshots
			(run_id, slug, place_id, name, rating, total_ratings, payload, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, slug) DO NOTHING`,
		history: `SELECT run_id, slug, place_id, name, rating, total_ratings, fetched_at
			FROM review_snapshots WHERE slug = ? ORDER BY fetched_at DESC LIMIT ?`,
	},
}

// SQLSnapshotWriter records every refreshed result in a review_snapshots
// table so rating history survives the overwrite of the JSON file.
type SQLSnapshotWriter struct {
	db      *sql.DB
	dialect dialect
}

// NewSnapshotWriter opens driver ("postgres" or "sqlite") at dsn, waits for
// the database with retry, and runs the schema migration.
func NewSnapshotWriter(ctx context.Context, driver, dsn string, retry *utils.RetryConfig) (*SQLSnapshotWriter, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("snapshot: unknown driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	if driver == "sqlite" {
		// Writes arrive from every client goroutine; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := retry.Do(ctx, "snapshot ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	w, err := NewSnapshotWriterFromDB(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewSnapshotWriterFromDB wraps an already opened database and migrates it.
func NewSnapshotWriterFromDB(ctx context.Context, db *sql.DB, driver string) (*SQLSnapshotWriter, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("snapshot: unknown driver %q", driver)
	}

	w := &SQLSnapshotWriter{db: db, dialect: d}
	if err := w.migrate(ctx); err != nil {
		return nil, fmt.Errorf("snapshot: migrate: %w", err)
	}
	return w, nil
}

func (w *SQLSnapshotWriter) migrate(ctx context.Context) error {
	for _, stmt := range w.dialect.migrate {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteSnapshot inserts one row for client. Rows are keyed by (run, slug),
// so re-writing within the same run is a no-op.
func (w *SQLSnapshotWriter) WriteSnapshot(ctx context.Context, runID string, client models.Client, result *models.CachedResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", client.Slug, err)
	}

	fetchedAt, err := ParseTimestamp(result.LastUpdated)
	if err != nil {
		return fmt.Errorf("snapshot: %s: %w", client.Slug, err)
	}

	_, err = w.db.ExecContext(ctx, w.dialect.insert,
		runID, client.Slug, client.PlaceID, result.Name, result.Rating, result.TotalRatings,
		string(payload), fetchedAt.UTC().Format(models.TimestampLayout))
	if err != nil {
		return fmt.Errorf("snapshot: insert %s: %w", client.Slug, err)
	}
	return nil
}

// History returns up to limit snapshots for slug, newest first.
func (w *SQLSnapshotWriter) History(ctx context.Context, slug string, limit int) ([]Snapshot, error) {
	rows, err := w.db.QueryContext(ctx, w.dialect.history, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshot: history %s: %w", slug, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.RunID, &s.Slug, &s.PlaceID, &s.Name, &s.Rating, &s.TotalRatings, &s.FetchedAt); err != nil {
			return nil, fmt.Errorf("snapshot: scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (w *SQLSnapshotWriter) Close() error {
	return w.db.Close()
}
