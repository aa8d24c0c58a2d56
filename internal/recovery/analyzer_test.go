package recovery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
	"github.com/jonesrussell/courtcapture/internal/recovery"
)

type mockGapSource struct {
	rows []*database.GapRow
	err  error
}

func (m *mockGapSource) GapRows(_ context.Context, _ domain.RawLogFilter) ([]*database.GapRow, error) {
	return m.rows, m.err
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestAnalyzeGaps(t *testing.T) {
	source := &mockGapSource{rows: []*database.GapRow{
		{Kind: domain.KindGeneralDocket, Jurisdiction: "trt3", Instance: domain.InstanceFirst,
			Day: day(1), Expected: 100, Retrieved: 97},
		{Kind: domain.KindHearings, Jurisdiction: "trt3", Instance: domain.InstanceFirst,
			Day: day(1), Expected: 12, Retrieved: 12},
	}}
	analyzer := recovery.NewAnalyzer(source, logger.NewNoOp())

	reports, err := analyzer.AnalyzeGaps(context.Background(), domain.RawLogFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, 3, reports[0].Gap)
	assert.Equal(t, 0, reports[1].Gap)
}

func TestAnalyzeGapsSkipsZeroExpected(t *testing.T) {
	source := &mockGapSource{rows: []*database.GapRow{
		{Kind: domain.KindTimeline, Jurisdiction: "trt3", Instance: domain.InstanceFirst,
			Day: day(2), Expected: 0, Retrieved: 0},
	}}
	analyzer := recovery.NewAnalyzer(source, logger.NewNoOp())

	reports, err := analyzer.AnalyzeGaps(context.Background(), domain.RawLogFilter{})
	require.NoError(t, err)
	assert.Empty(t, reports, "nothing expected means nothing to recover")
}

func TestAnalyzeGapsClampsNegativeGap(t *testing.T) {
	// Two same-day runs against shifting portal data: more distinct items
	// than any single run's totalizer.
	source := &mockGapSource{rows: []*database.GapRow{
		{Kind: domain.KindGeneralDocket, Jurisdiction: "trt3", Instance: domain.InstanceFirst,
			Day: day(3), Expected: 50, Retrieved: 53},
	}}
	analyzer := recovery.NewAnalyzer(source, logger.NewNoOp())

	reports, err := analyzer.AnalyzeGaps(context.Background(), domain.RawLogFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Gap)
}

func TestSweepPropagatesSourceError(t *testing.T) {
	source := &mockGapSource{err: errors.New("db down")}
	analyzer := recovery.NewAnalyzer(source, logger.NewNoOp())

	err := analyzer.Sweep(context.Background())
	assert.Error(t, err)
}
