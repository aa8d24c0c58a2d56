// Package metrics holds in-process counters for capture activity,
// exposed through the HTTP API.
package metrics

import (
	"sync"
	"time"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// KindStats aggregates runs of one capture kind.
type KindStats struct {
	Runs           int64   `json:"runs"`
	Successes      int64   `json:"successes"`
	Partials       int64   `json:"partials"`
	Failures       int64   `json:"failures"`
	ItemsRetrieved int64   `json:"items_retrieved"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
}

// Collector accumulates capture run measurements. Safe for concurrent
// use.
type Collector struct {
	mu        sync.RWMutex
	byKind    map[domain.CaptureKind]*KindStats
	lastRunAt time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{byKind: make(map[domain.CaptureKind]*KindStats)}
}

// RecordRun records one finished capture run.
func (c *Collector) RecordRun(kind domain.CaptureKind, outcome domain.RunOutcome, retrieved int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.byKind[kind]
	if !ok {
		stats = &KindStats{}
		c.byKind[kind] = stats
	}

	// Running average over all runs of the kind.
	total := stats.AvgDurationMs * float64(stats.Runs)
	stats.Runs++
	stats.AvgDurationMs = (total + float64(elapsed.Milliseconds())) / float64(stats.Runs)

	stats.ItemsRetrieved += int64(retrieved)
	switch outcome {
	case domain.OutcomeSuccess:
		stats.Successes++
	case domain.OutcomePartial:
		stats.Partials++
	case domain.OutcomeFailure:
		stats.Failures++
	}

	c.lastRunAt = time.Now()
}

// Snapshot is a point-in-time copy of the collector.
type Snapshot struct {
	ByKind    map[domain.CaptureKind]KindStats `json:"by_kind"`
	LastRunAt time.Time                        `json:"last_run_at"`
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := Snapshot{
		ByKind:    make(map[domain.CaptureKind]KindStats, len(c.byKind)),
		LastRunAt: c.lastRunAt,
	}
	for kind, stats := range c.byKind {
		snapshot.ByKind[kind] = *stats
	}
	return snapshot
}
