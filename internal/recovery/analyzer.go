// Package recovery analyzes the raw capture log for gaps: buckets where
// fewer distinct items were retrieved than the portal totalizer promised.
// The analyzer only describes; re-capture is a human decision.
package recovery

import (
	"context"

	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// GapSource provides the aggregated raw-log buckets.
type GapSource interface {
	GapRows(ctx context.Context, filter domain.RawLogFilter) ([]*database.GapRow, error)
}

// Analyzer computes gap reports from the raw capture log.
type Analyzer struct {
	source GapSource
	log    logger.Interface
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(source GapSource, log logger.Interface) *Analyzer {
	return &Analyzer{source: source, log: log.WithComponent("recovery")}
}

// AnalyzeGaps groups successful raw-log entries by (kind, jurisdiction,
// instance, day) and compares distinct retrieved items against the
// largest totalizer the owning runs recorded. Buckets with a zero
// expected count are skipped: a portal reporting nothing to capture is
// not a gap.
func (a *Analyzer) AnalyzeGaps(ctx context.Context, filter domain.RawLogFilter) ([]*domain.GapReport, error) {
	rows, err := a.source.GapRows(ctx, filter)
	if err != nil {
		return nil, err
	}

	reports := make([]*domain.GapReport, 0, len(rows))
	for _, row := range rows {
		if row.Expected == 0 {
			continue
		}

		gap := row.Expected - row.Retrieved
		if gap < 0 {
			// More distinct items than any run's totalizer. Possible when
			// re-runs on the same day saw shifting portal data; there is
			// nothing to recover.
			gap = 0
		}

		reports = append(reports, &domain.GapReport{
			Kind:         row.Kind,
			Jurisdiction: row.Jurisdiction,
			Instance:     row.Instance,
			Day:          row.Day,
			Expected:     row.Expected,
			Retrieved:    row.Retrieved,
			Gap:          gap,
		})
	}

	return reports, nil
}

// Sweep runs a full gap analysis and logs every bucket with a positive
// gap. Wired to the scheduler's nightly cron.
func (a *Analyzer) Sweep(ctx context.Context) error {
	reports, err := a.AnalyzeGaps(ctx, domain.RawLogFilter{})
	if err != nil {
		return err
	}

	found := 0
	for _, report := range reports {
		if report.Gap == 0 {
			continue
		}
		found++
		a.log.Warn("capture gap detected",
			"kind", string(report.Kind),
			"jurisdiction", report.Jurisdiction,
			"instance", string(report.Instance),
			"day", report.Day.Format("2006-01-02"),
			"expected", report.Expected,
			"retrieved", report.Retrieved,
			"gap", report.Gap,
		)
	}

	a.log.Info("recovery sweep finished", "buckets", len(reports), "gaps", found)
	return nil
}
