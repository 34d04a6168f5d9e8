package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviews-refresh/config"
	"reviews-refresh/models"
	"reviews-refresh/scraper/places"
	"reviews-refresh/storage"
	"reviews-refresh/utils"
)

const placeBody = `{"status":"OK","result":{"name":"Place %s","rating":4.567,"user_ratings_total":42,
"reviews":[{"author_name":"a","rating":3,"time":1},{"author_name":"b","rating":5,"time":2},{"author_name":"c","rating":5,"time":3}]}}`

// fakePlaces is an httptest Places endpoint that records every request.
type fakePlaces struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	failing  map[string]bool
	bodies   map[string]string
	srv      *httptest.Server
}

func newFakePlaces(t *testing.T, failing ...string) *fakePlaces {
	t.Helper()
	f := &fakePlaces{
		requests: make(map[string][]time.Time),
		failing:  make(map[string]bool),
		bodies:   make(map[string]string),
	}
	for _, id := range failing {
		f.failing[id] = true
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("place_id")
		f.mu.Lock()
		f.requests[id] = append(f.requests[id], time.Now())
		fail := f.failing[id]
		body, custom := f.bodies[id]
		f.mu.Unlock()

		if fail {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if custom {
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = fmt.Fprintf(w, placeBody, id)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

// respond makes the server answer id with body instead of the default place.
func (f *fakePlaces) respond(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[id] = body
}

func (f *fakePlaces) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[id])
}

func (f *fakePlaces) first(id string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id][0]
}

type harness struct {
	cfg       *config.Config
	store     *storage.JSONStore
	refresher *Refresher
	places    *fakePlaces
}

func newHarness(t *testing.T, stagger time.Duration, failing ...string) *harness {
	t.Helper()
	fp := newFakePlaces(t, failing...)

	cfg := config.Default()
	cfg.GoogleAPIKey = "test-key"
	cfg.PlacesEndpoint = fp.srv.URL
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.RateLimitMs = int(stagger / time.Millisecond)

	logger := utils.NewNopLogger()
	store := storage.NewJSONStore(cfg.DataDir)
	fetcher := places.NewWithClient(cfg, fp.srv.Client(), logger)

	return &harness{
		cfg:       cfg,
		store:     store,
		refresher: NewRefresher(cfg, fetcher, store, logger),
		places:    fp,
	}
}

func (h *harness) seed(t *testing.T, slug string, updated time.Time) []byte {
	t.Helper()
	require.NoError(t, h.store.EnsureDir())
	res := &models.CachedResult{
		Name:        "Old " + slug,
		Rating:      3.9,
		Reviews:     []models.Review{},
		LastUpdated: FormatTimestamp(updated),
	}
	require.NoError(t, h.store.Save(slug, res))
	raw, err := os.ReadFile(h.store.Path(slug))
	require.NoError(t, err)
	return raw
}

func clients(slugs ...string) []models.Client {
	out := make([]models.Client, len(slugs))
	for i, s := range slugs {
		out[i] = models.Client{Slug: s, PlaceID: "place-" + s, Name: s, URL: "https://" + s + ".example"}
	}
	return out
}

func TestRunCreatesDataDirAndWrites(t *testing.T) {
	h := newHarness(t, 0)

	report, err := h.refresher.Run(context.Background(), clients("a", "b"))
	require.NoError(t, err)

	require.Len(t, report.Clients, 2)
	assert.NotEmpty(t, report.RunID)
	for i, slug := range []string{"a", "b"} {
		assert.Equal(t, slug, report.Clients[i].Slug)
		assert.Equal(t, models.OutcomeUpdated, report.Clients[i].Outcome)
		assert.Equal(t, 4.6, report.Clients[i].Rating)
		assert.Equal(t, 3, report.Clients[i].Reviews)
		assert.Equal(t, 1, h.places.count("place-"+slug), "exactly one request per stale client")

		got, err := h.store.Load(slug)
		require.NoError(t, err)
		assert.Equal(t, "Place place-"+slug, got.Name)
		assert.Equal(t, 4.6, got.Rating)
		assert.Equal(t, 42, got.TotalRatings)
		require.Len(t, got.Reviews, 3)
		assert.Equal(t, "c", got.Reviews[0].AuthorName)
		assert.Equal(t, "LocalBusiness", got.Schema.Type)
		assert.Equal(t, 42, got.Schema.AggregateRating.ReviewCount)
	}
}

func TestRunWritesUnratedPlace(t *testing.T) {
	h := newHarness(t, 0)
	h.places.respond("place-new", `{"status":"OK","result":{"name":"Brand New Cafe"}}`)

	report, err := h.refresher.Run(context.Background(), clients("new"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeUpdated, report.Clients[0].Outcome)
	assert.NoError(t, report.Clients[0].Err)

	got, err := h.store.Load("new")
	require.NoError(t, err)
	assert.Equal(t, "Brand New Cafe", got.Name)
	assert.Equal(t, 0.0, got.Rating)
	assert.Equal(t, 0, got.TotalRatings)
	assert.Empty(t, got.Reviews)
	assert.Equal(t, 0, got.Schema.AggregateRating.ReviewCount)
}

func TestRunSkipsFreshCache(t *testing.T) {
	h := newHarness(t, 0)
	before := h.seed(t, "a", time.Now().Add(-time.Hour))

	report, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFresh, report.Clients[0].Outcome)
	assert.Equal(t, 0, h.places.count("place-a"))
	after, err := os.ReadFile(h.store.Path("a"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "fresh cache must be left byte-for-byte unchanged")
}

func TestRunRefetchesExpiredCache(t *testing.T) {
	h := newHarness(t, 0)
	h.seed(t, "a", time.Now().Add(-25*time.Hour))

	report, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeUpdated, report.Clients[0].Outcome)
	assert.Equal(t, 1, h.places.count("place-a"))
	got, err := h.store.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "Place place-a", got.Name)
}

func TestRunStaggersRequests(t *testing.T) {
	stagger := 60 * time.Millisecond
	h := newHarness(t, stagger)

	start := time.Now()
	_, err := h.refresher.Run(context.Background(), clients("a", "b", "c", "d"))
	require.NoError(t, err)

	for k, slug := range []string{"a", "b", "c", "d"} {
		elapsed := h.places.first("place-" + slug).Sub(start)
		assert.GreaterOrEqual(t, elapsed, time.Duration(k)*stagger, "client %d fetched too early", k)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	h := newHarness(t, 0, "place-a")

	report, err := h.refresher.Run(context.Background(), clients("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNoFallback, report.Clients[0].Outcome)
	require.Error(t, report.Clients[0].Err)
	assert.Contains(t, report.Clients[0].Err.Error(), "place-a")
	assert.False(t, h.store.Exists("a"), "failed client without prior file must not get one")

	assert.Equal(t, models.OutcomeUpdated, report.Clients[1].Outcome)
	assert.True(t, h.store.Exists("b"))
}

func TestRunKeepsFallbackOnFailure(t *testing.T) {
	h := newHarness(t, 0, "place-a")
	before := h.seed(t, "a", time.Now().Add(-48*time.Hour))

	report, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFallback, report.Clients[0].Outcome)
	assert.Equal(t, 1, h.places.count("place-a"))
	after, err := os.ReadFile(h.store.Path("a"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunTreatsMalformedCacheAsFailure(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.store.EnsureDir())
	broken := []byte(`{"name": "half written`)
	require.NoError(t, os.WriteFile(h.store.Path("a"), broken, 0o644))

	report, err := h.refresher.Run(context.Background(), clients("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFallback, report.Clients[0].Outcome)
	assert.Error(t, report.Clients[0].Err)
	assert.Equal(t, 0, h.places.count("place-a"))
	after, err := os.ReadFile(h.store.Path("a"))
	require.NoError(t, err)
	assert.Equal(t, broken, after)

	assert.Equal(t, models.OutcomeUpdated, report.Clients[1].Outcome)
}

func TestRunUsesClock(t *testing.T) {
	h := newHarness(t, 0)
	fixed := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	h.refresher.WithClock(func() time.Time { return fixed })

	_, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)

	got, err := h.store.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19T06:00:00.000Z", got.LastUpdated)

	// Same clock: the file written above is now fresh.
	report, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFresh, report.Clients[0].Outcome)
	assert.Equal(t, 1, h.places.count("place-a"))
}

type recordingSnapshots struct {
	mu    sync.Mutex
	slugs []string
	err   error
}

func (s *recordingSnapshots) WriteSnapshot(_ context.Context, _ string, c models.Client, _ *models.CachedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugs = append(s.slugs, c.Slug)
	return s.err
}

func (s *recordingSnapshots) Close() error { return nil }

func TestRunRecordsSnapshots(t *testing.T) {
	h := newHarness(t, 0, "place-b")
	snaps := &recordingSnapshots{}
	h.refresher.WithSnapshots(snaps)

	_, err := h.refresher.Run(context.Background(), clients("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, snaps.slugs)
}

func TestRunIgnoresSnapshotErrors(t *testing.T) {
	h := newHarness(t, 0)
	h.refresher.WithSnapshots(&recordingSnapshots{err: errors.New("db down")})

	report, err := h.refresher.Run(context.Background(), clients("a"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeUpdated, report.Clients[0].Outcome)
	assert.True(t, h.store.Exists("a"))
}

func TestRunCancelledDuringStagger(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report, err := h.refresher.Run(ctx, clients("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeUpdated, report.Clients[0].Outcome)
	assert.Equal(t, models.OutcomeNoFallback, report.Clients[1].Outcome)
	assert.ErrorIs(t, report.Clients[1].Err, context.DeadlineExceeded)
	assert.Equal(t, 0, h.places.count("place-b"))
}

func TestRunFailsWhenDataDirUnusable(t *testing.T) {
	h := newHarness(t, 0)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	r := NewRefresher(h.cfg, nil, storage.NewJSONStore(filepath.Join(blocker, "data")), utils.NewNopLogger())
	_, err := r.Run(context.Background(), clients("a"))
	assert.Error(t, err)
}
