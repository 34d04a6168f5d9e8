package storage

import (
	"context"
	"errors"
	"time"

	"reviews-refresh/models"
)

// ErrNotFound is returned when no result has been stored for a slug.
var ErrNotFound = errors.New("result not found")

// ResultStore is the per-client result cache the refresher reads and writes.
type ResultStore interface {
	// EnsureDir prepares the backing directory before any client runs.
	EnsureDir() error
	// IsFresh reports whether the stored result for slug is younger than maxAge.
	IsFresh(slug string, now time.Time, maxAge time.Duration) (bool, error)
	// Exists reports whether any result is stored for slug.
	Exists(slug string) bool
	Save(slug string, result *models.CachedResult) error
}

// SnapshotWriter mirrors freshly written results into a history store.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, runID string, client models.Client, result *models.CachedResult) error
	Close() error
}

// ReportWriter persists a run report.
type ReportWriter interface {
	WriteReport(report *models.RunReport) error
	Close() error
}
