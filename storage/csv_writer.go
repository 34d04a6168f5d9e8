package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"reviews-refresh/models"
)

var _ ReportWriter = (*CSVReportWriter)(nil)

// CSVReportWriter writes run reports to a CSV file, one row per client.
// It is safe for concurrent use.
type CSVReportWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVReportWriter creates (or truncates) the CSV file at the given path
// and writes the header row. Intermediate directories are created automatically.
func NewCSVReportWriter(path string) (*CSVReportWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"run_id", "slug", "outcome", "rating", "reviews", "duration_ms", "error", "finished_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVReportWriter{file: f, writer: w}, nil
}

// WriteReport appends one row per client in report.
func (c *CSVReportWriter) WriteReport(report *models.RunReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	finished := report.Finished.UTC().Format(models.TimestampLayout)
	for _, r := range report.Clients {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		row := []string{
			report.RunID,
			r.Slug,
			string(r.Outcome),
			strconv.FormatFloat(r.Rating, 'f', 1, 64),
			strconv.Itoa(r.Reviews),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			errText,
			finished,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVReportWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
