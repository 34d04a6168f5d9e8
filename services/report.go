package services

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"reviews-refresh/models"
	"reviews-refresh/storage"
)

// ReportPrinter renders run reports and snapshot history as tables.
type ReportPrinter struct {
	out io.Writer
}

// NewReportPrinter creates a ReportPrinter writing to out.
func NewReportPrinter(out io.Writer) *ReportPrinter {
	return &ReportPrinter{out: out}
}

// Print writes one row per client followed by an outcome summary.
func (p *ReportPrinter) Print(r *models.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle(fmt.Sprintf("Review refresh %s", r.RunID))

	t.AppendHeader(table.Row{"#", "Client", "Outcome", "Rating", "Reviews", "Took", "Error"})
	for i, c := range r.Clients {
		rating, reviews := "-", "-"
		if c.Outcome == models.OutcomeUpdated {
			rating = fmt.Sprintf("%.1f", c.Rating)
			reviews = fmt.Sprintf("%d", c.Reviews)
		}
		errText := ""
		if c.Err != nil {
			errText = truncate(c.Err.Error(), 60)
		}
		t.AppendRow(table.Row{i + 1, c.Slug, outcomeLabel(c.Outcome), rating, reviews, c.Duration.Round(time.Millisecond), errText})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d updated / %d fresh / %d failed",
		r.Count(models.OutcomeUpdated), r.Count(models.OutcomeFresh),
		r.Count(models.OutcomeFallback)+r.Count(models.OutcomeNoFallback)),
		"", "", r.Finished.Sub(r.Started).Round(time.Millisecond), ""})
	t.Render()
}

// PrintHistory writes stored snapshots for one client.
func (p *ReportPrinter) PrintHistory(slug string, snapshots []storage.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("History for %s", slug))

	t.AppendHeader(table.Row{"Fetched", "Name", "Rating", "Total ratings", "Run"})
	for _, s := range snapshots {
		t.AppendRow(table.Row{s.FetchedAt, s.Name, fmt.Sprintf("%.1f", s.Rating), s.TotalRatings, s.RunID})
	}
	if len(snapshots) == 0 {
		t.AppendRow(table.Row{"no snapshots recorded", "", "", "", ""})
	}
	t.Render()
}

func outcomeLabel(o models.Outcome) string {
	switch o {
	case models.OutcomeFresh:
		return "cache fresh"
	case models.OutcomeUpdated:
		return "updated"
	case models.OutcomeFallback:
		return "failed, kept cache"
	case models.OutcomeNoFallback:
		return "failed, no fallback"
	default:
		return string(o)
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return text.Trim(s, n-3) + "..."
}
