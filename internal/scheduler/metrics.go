package scheduler

import (
	"sync"
	"time"
)

// Metrics holds real-time counters for the dispatcher.
type Metrics struct {
	mu sync.RWMutex

	Dispatched int64
	Succeeded  int64
	Failed     int64
	// Skipped counts due schedules left untouched because their scope was
	// already in flight.
	Skipped int64

	LastPollAt time.Time
}

// IncrementDispatched atomically increments the dispatched counter.
func (m *Metrics) IncrementDispatched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatched++
}

// IncrementSucceeded atomically increments the succeeded counter.
func (m *Metrics) IncrementSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Succeeded++
}

// IncrementFailed atomically increments the failed counter.
func (m *Metrics) IncrementFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed++
}

// IncrementSkipped atomically increments the skipped counter.
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Skipped++
}

// UpdateLastPoll records the time of the latest poll.
func (m *Metrics) UpdateLastPoll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastPollAt = time.Now()
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		Dispatched: m.Dispatched,
		Succeeded:  m.Succeeded,
		Failed:     m.Failed,
		Skipped:    m.Skipped,
		LastPollAt: m.LastPollAt,
	}
}
