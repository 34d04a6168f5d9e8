package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reviews-refresh/config"
	"reviews-refresh/models"
	"reviews-refresh/storage"
	"reviews-refresh/utils"
)

// Fetcher retrieves place details for a place id.
type Fetcher interface {
	FetchDetails(ctx context.Context, placeID string) (*models.PlaceDetails, error)
}

// Refresher runs the per-client refresh pipeline: cache gate, fetch,
// transform and write, one goroutine per client with staggered starts.
type Refresher struct {
	cacheDuration time.Duration
	stagger       time.Duration

	fetcher   Fetcher
	store     storage.ResultStore
	snapshots storage.SnapshotWriter
	logger    *utils.Logger
	now       func() time.Time
}

// NewRefresher creates a Refresher using the cache window and request
// stagger from cfg.
func NewRefresher(cfg *config.Config, fetcher Fetcher, store storage.ResultStore, logger *utils.Logger) *Refresher {
	return &Refresher{
		cacheDuration: cfg.CacheDuration,
		stagger:       cfg.RateLimit(),
		fetcher:       fetcher,
		store:         store,
		logger:        logger,
		now:           time.Now,
	}
}

// WithSnapshots mirrors every written result into w.
func (r *Refresher) WithSnapshots(w storage.SnapshotWriter) *Refresher {
	r.snapshots = w
	return r
}

// WithClock replaces the wall clock used for freshness and timestamps.
func (r *Refresher) WithClock(now func() time.Time) *Refresher {
	r.now = now
	return r
}

// Run refreshes every client and waits for all of them. The client at
// position i starts no earlier than i * stagger after Run is called.
// Individual client failures are recorded in the report, never returned;
// the only error is failing to prepare the output directory.
func (r *Refresher) Run(ctx context.Context, clients []models.Client) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:   uuid.NewString(),
		Started: r.now(),
		Clients: make([]models.ClientReport, len(clients)),
	}

	if err := r.store.EnsureDir(); err != nil {
		return nil, err
	}

	r.logger.Info("[refresh] Run %s: %d clients, stagger %v, cache window %v",
		report.RunID, len(clients), r.stagger, r.cacheDuration)

	sched := utils.NewScheduler(r.stagger, r.logger)
	for i, client := range clients {
		// Each goroutine owns exactly one slot of report.Clients.
		slot := &report.Clients[i]
		sched.Submit(ctx, i, func(ctx context.Context) {
			*slot = r.refreshClient(ctx, report.RunID, client)
		})
	}
	sched.Wait()

	for i, c := range report.Clients {
		if c.Outcome == "" {
			// Never started: cancelled during its stagger delay, or panicked.
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("refresh of %s did not complete", clients[i].Slug)
			}
			report.Clients[i] = r.fail(r.logger.With("client", clients[i].Slug), clients[i], err, 0)
		}
	}

	report.Finished = r.now()
	r.logger.Info("[refresh] Run %s done: %d updated, %d fresh, %d failed",
		report.RunID, report.Count(models.OutcomeUpdated), report.Count(models.OutcomeFresh),
		report.Count(models.OutcomeFallback)+report.Count(models.OutcomeNoFallback))
	return report, nil
}

// refreshClient runs the pipeline for one client and converts any failure
// into a fallback outcome.
func (r *Refresher) refreshClient(ctx context.Context, runID string, client models.Client) models.ClientReport {
	start := time.Now()
	log := r.logger.With("client", client.Slug)

	result, err := r.refresh(ctx, runID, client, log)
	if err != nil {
		return r.fail(log, client, err, time.Since(start))
	}

	if result == nil {
		log.Info("[refresh] Using fresh cache for %s", client.Slug)
		return models.ClientReport{Slug: client.Slug, Outcome: models.OutcomeFresh, Duration: time.Since(start)}
	}

	log.Info("[refresh] Updated %s (rating %.1f, %d reviews)", client.Slug, result.Rating, len(result.Reviews))
	return models.ClientReport{
		Slug:     client.Slug,
		Outcome:  models.OutcomeUpdated,
		Rating:   result.Rating,
		Reviews:  len(result.Reviews),
		Duration: time.Since(start),
	}
}

// refresh returns the newly written result, or nil when the cache is fresh.
func (r *Refresher) refresh(ctx context.Context, runID string, client models.Client, log *utils.Logger) (*models.CachedResult, error) {
	fresh, err := r.store.IsFresh(client.Slug, r.now(), r.cacheDuration)
	if err != nil {
		return nil, err
	}
	if fresh {
		return nil, nil
	}

	log.Debug("[refresh] Fetching place %s", client.PlaceID)
	details, err := r.fetcher.FetchDetails(ctx, client.PlaceID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", client.Slug, err)
	}

	result := BuildResult(client, details, r.now())

	if err := r.store.Save(client.Slug, result); err != nil {
		return nil, err
	}

	if r.snapshots != nil {
		if err := r.snapshots.WriteSnapshot(ctx, runID, client, result); err != nil {
			log.Warn("[refresh] Snapshot not recorded for %s: %v", client.Slug, err)
		}
	}
	return result, nil
}

// fail logs err and reports whether the previous result remains as fallback.
// The stored file is never touched here.
func (r *Refresher) fail(log *utils.Logger, client models.Client, err error, took time.Duration) models.ClientReport {
	log.Warn("[refresh] %v", err)

	outcome := models.OutcomeNoFallback
	if r.store.Exists(client.Slug) {
		outcome = models.OutcomeFallback
		log.Info("[refresh] Using cached version for %s", client.Slug)
	} else {
		log.Error("[refresh] No fallback available for %s", client.Slug)
	}

	return models.ClientReport{Slug: client.Slug, Outcome: outcome, Err: err, Duration: took}
}
