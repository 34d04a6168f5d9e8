package storage

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviews-refresh/models"
)

func TestCSVReportWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "last-run.csv")
	w, err := NewCSVReportWriter(path)
	require.NoError(t, err)

	report := &models.RunReport{
		RunID:    "run-1",
		Finished: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Clients: []models.ClientReport{
			{Slug: "a", Outcome: models.OutcomeUpdated, Rating: 4.6, Reviews: 5, Duration: 1500 * time.Millisecond},
			{Slug: "b", Outcome: models.OutcomeNoFallback, Err: errors.New("places: b: boom")},
		},
	}
	require.NoError(t, w.WriteReport(report))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "run_id", rows[0][0])
	assert.Equal(t, []string{"run-1", "a", "updated", "4.6", "5", "1500", "", "2026-10-19T12:00:00.000Z"}, rows[1])
	assert.Equal(t, "no_fallback", rows[2][2])
	assert.Equal(t, "places: b: boom", rows[2][6])
}
