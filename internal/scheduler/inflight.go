package scheduler

import (
	"fmt"
	"sync"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// ScopeKey identifies one capture scope. At most one capture per scope
// runs at a time; the registry is the only source of truth for that
// guard, the database carries no in-flight state.
type ScopeKey struct {
	AccountID    int64
	Jurisdiction string
	Instance     domain.Instance
	Kind         domain.CaptureKind
}

func (k ScopeKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%s", k.AccountID, k.Jurisdiction, k.Instance, k.Kind)
}

// InFlight is the in-memory registry of capture scopes currently
// executing, plus the schedules that own them.
type InFlight struct {
	mu        sync.Mutex
	scopes    map[ScopeKey]struct{}
	schedules map[int64]int
}

// NewInFlight creates an empty registry.
func NewInFlight() *InFlight {
	return &InFlight{
		scopes:    make(map[ScopeKey]struct{}),
		schedules: make(map[int64]int),
	}
}

// TryAcquire claims a scope for a schedule. Returns false when the scope
// is already running.
func (f *InFlight) TryAcquire(scheduleID int64, key ScopeKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.scopes[key]; busy {
		return false
	}
	f.scopes[key] = struct{}{}
	f.schedules[scheduleID]++
	return true
}

// Release frees a scope claimed by TryAcquire.
func (f *InFlight) Release(scheduleID int64, key ScopeKey) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.scopes, key)
	f.schedules[scheduleID]--
	if f.schedules[scheduleID] <= 0 {
		delete(f.schedules, scheduleID)
	}
}

// ScheduleBusy reports whether any capture owned by the schedule is in
// flight. Mutations and deletions of busy schedules are rejected.
func (f *InFlight) ScheduleBusy(scheduleID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.schedules[scheduleID] > 0
}

// Running returns the number of scopes currently in flight.
func (f *InFlight) Running() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.scopes)
}
