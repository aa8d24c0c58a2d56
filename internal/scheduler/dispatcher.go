package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// ScheduleStore lists due schedules and records completed invocations.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduleDefinition, error)
	MarkExecuted(ctx context.Context, id int64, lastRun, nextRun time.Time) error
}

// CredentialDirectory maps a schedule's credential IDs to their capture
// scopes.
type CredentialDirectory interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*credentials.Stored, error)
}

// Runner executes one capture scope on behalf of a schedule. Wired to
// the capture executor plus the persistence synchronizer.
type Runner interface {
	Execute(ctx context.Context, schedule *domain.ScheduleDefinition, scope ScopeKey) error
}

// SweepFunc runs the nightly recovery sweep.
type SweepFunc func(ctx context.Context) error

// Config tunes the dispatcher.
type Config struct {
	PollInterval time.Duration
	// RecoverySweepSpec is a cron expression; empty disables the sweep.
	RecoverySweepSpec string
}

// Dispatcher polls for due schedules and launches them as independent
// goroutines, one per schedule, guarded by the in-flight registry.
type Dispatcher struct {
	store    ScheduleStore
	creds    CredentialDirectory
	runner   Runner
	inflight *InFlight
	metrics  *Metrics
	log      logger.Interface
	cfg      Config
	sweep    SweepFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
	cron   *cron.Cron
}

// NewDispatcher creates a dispatcher. sweep may be nil; the recovery
// sweep is then disabled.
func NewDispatcher(
	store ScheduleStore,
	creds CredentialDirectory,
	runner Runner,
	log logger.Interface,
	cfg Config,
	sweep SweepFunc,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		creds:    creds,
		runner:   runner,
		inflight: NewInFlight(),
		metrics:  &Metrics{},
		log:      log.WithComponent("scheduler"),
		cfg:      cfg,
		sweep:    sweep,
	}
}

// InFlight exposes the registry so the schedule management API can
// reject mutations of busy schedules.
func (d *Dispatcher) InFlight() *InFlight { return d.inflight }

// Metrics exposes the dispatcher counters.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// Start launches the poll loop and the recovery sweep. It returns
// immediately; Stop blocks until in-flight work drains.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	if d.sweep != nil && d.cfg.RecoverySweepSpec != "" {
		d.cron = cron.New()
		_, err := d.cron.AddFunc(d.cfg.RecoverySweepSpec, func() {
			if sweepErr := d.sweep(ctx); sweepErr != nil {
				d.log.Error("recovery sweep failed", "error", sweepErr)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid recovery sweep spec: %w", err)
		}
		d.cron.Start()
	}

	d.wg.Add(1)
	go d.poll(ctx)

	d.log.Info("dispatcher started",
		"poll_interval", d.cfg.PollInterval.String(),
		"recovery_sweep", d.cfg.RecoverySweepSpec,
	)
	return nil
}

// Stop halts polling and waits for in-flight captures to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

func (d *Dispatcher) poll(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Dispatch(ctx, now.UTC())
		}
	}
}

// Dispatch launches every due schedule whose scopes are free. Exported
// so one poll round can be driven directly in tests and tooling.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) {
	d.metrics.UpdateLastPoll()

	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		d.log.Error("failed to list due schedules", "error", err)
		return
	}

	for _, schedule := range due {
		scopes, err := d.resolveScopes(ctx, schedule)
		if err != nil {
			d.log.Error("failed to resolve schedule scopes",
				"schedule_id", schedule.ID, "error", err)
			continue
		}
		if len(scopes) == 0 {
			d.log.Warn("schedule has no usable credentials", "schedule_id", schedule.ID)
			continue
		}

		claimed := make([]ScopeKey, 0, len(scopes))
		blocked := false
		for _, scope := range scopes {
			if !d.inflight.TryAcquire(schedule.ID, scope) {
				blocked = true
				break
			}
			claimed = append(claimed, scope)
		}
		if blocked {
			// Another invocation of this scope is still running. The
			// schedule stays due and is retried on the next poll.
			for _, scope := range claimed {
				d.inflight.Release(schedule.ID, scope)
			}
			d.metrics.IncrementSkipped()
			continue
		}

		d.metrics.IncrementDispatched()
		d.wg.Add(1)
		go d.run(ctx, schedule, claimed, now)
	}
}

// run executes every scope of one due schedule. The schedule advances
// only when all scopes completed; a failed invocation leaves it due.
func (d *Dispatcher) run(ctx context.Context, schedule *domain.ScheduleDefinition, scopes []ScopeKey, now time.Time) {
	defer d.wg.Done()
	defer func() {
		for _, scope := range scopes {
			d.inflight.Release(schedule.ID, scope)
		}
	}()

	log := d.log.With("schedule_id", schedule.ID, "kind", string(schedule.Kind))

	failed := false
	for _, scope := range scopes {
		if err := d.runner.Execute(ctx, schedule, scope); err != nil {
			failed = true
			log.Error("scheduled capture failed", "scope", scope.String(), "error", err)
		}
	}

	if failed {
		d.metrics.IncrementFailed()
		log.Warn("schedule stays due after failed invocation")
		return
	}

	next, err := ComputeNextRun(schedule, now, time.Now().UTC())
	if err != nil {
		d.metrics.IncrementFailed()
		log.Error("failed to compute next run", "error", err)
		return
	}

	if err := d.store.MarkExecuted(context.WithoutCancel(ctx), schedule.ID, now, next); err != nil {
		d.metrics.IncrementFailed()
		log.Error("failed to mark schedule executed", "error", err)
		return
	}

	d.metrics.IncrementSucceeded()
	log.Info("schedule executed", "next_run", next.Format(time.RFC3339))
}

// resolveScopes maps the schedule's credentials to distinct capture
// scopes. Inactive credentials are skipped.
func (d *Dispatcher) resolveScopes(ctx context.Context, schedule *domain.ScheduleDefinition) ([]ScopeKey, error) {
	stored, err := d.creds.GetByIDs(ctx, schedule.CredentialIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[ScopeKey]struct{}, len(stored))
	scopes := make([]ScopeKey, 0, len(stored))
	for _, cred := range stored {
		if !cred.Active {
			continue
		}
		key := ScopeKey{
			AccountID:    cred.AccountID,
			Jurisdiction: cred.Jurisdiction,
			Instance:     domain.Instance(cred.Instance),
			Kind:         schedule.Kind,
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		scopes = append(scopes, key)
	}

	return scopes, nil
}
