// Package syncer is the persistence synchronizer: it takes the
// normalized records of one capture run and reconciles them with the
// business store under per-kind natural keys.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// CaseStore reconciles unified cases and their per-instance sub-records.
type CaseStore interface {
	GetByNumber(ctx context.Context, accountID int64, caseNumber string) (*domain.UnifiedCase, error)
	Create(ctx context.Context, c *domain.UnifiedCase) (bool, error)
	UpdateCurrentInstance(ctx context.Context, caseID int64, instance domain.Instance) error
	GetInstance(ctx context.Context, caseID int64, jurisdiction string, instance domain.Instance) (*domain.CaseInstance, error)
	CreateInstance(ctx context.Context, ci *domain.CaseInstance) (bool, error)
	UpdateInstance(ctx context.Context, ci *domain.CaseInstance) error
}

// RecordStore upserts per-kind records under their natural keys.
type RecordStore interface {
	UpsertHearing(ctx context.Context, accountID int64, jurisdiction string, instance domain.Instance, h *domain.Hearing) (database.RowOutcome, error)
	UpsertPendingItem(ctx context.Context, accountID int64, jurisdiction string, instance domain.Instance, p *domain.PendingItem) (database.RowOutcome, error)
	TimelineEventKeys(ctx context.Context, accountID int64, caseNumber string) (map[string]struct{}, error)
	InsertTimelineEvent(ctx context.Context, accountID int64, jurisdiction string, instance domain.Instance, e *domain.TimelineEvent) (database.RowOutcome, error)
}

// Result summarizes one synchronization.
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	// Unchanged counts records whose stored row was already identical; no
	// write happened for them.
	Unchanged int `json:"unchanged"`
	// Deduplicated counts cross-instance duplicate timeline events removed
	// by content equality before merge.
	Deduplicated int `json:"deduplicated"`
	// Errors counts records that failed to persist. A record failure never
	// aborts the batch.
	Errors int `json:"errors"`
}

func (r *Result) add(outcome database.RowOutcome) {
	switch outcome {
	case database.RowInserted:
		r.Inserted++
	case database.RowUpdated:
		r.Updated++
	case database.RowUnchanged:
		r.Unchanged++
	}
}

// Syncer reconciles normalized capture records with the business store.
type Syncer struct {
	cases   CaseStore
	records RecordStore
	log     logger.Interface
}

// New creates a synchronizer.
func New(cases CaseStore, records RecordStore, log logger.Interface) *Syncer {
	return &Syncer{cases: cases, records: records, log: log.WithComponent("syncer")}
}

// Sync reconciles one capture's records. Each record is isolated: a
// persistence failure counts toward Errors and the batch continues. The
// returned error is reserved for store-level failures that make the whole
// batch pointless.
func (s *Syncer) Sync(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	records []domain.NormalizedRecord,
) (*Result, error) {
	result := &Result{}

	timeline := make([]*domain.TimelineEvent, 0)

	for _, record := range records {
		var err error
		switch r := record.(type) {
		case *domain.DocketEntry:
			err = s.syncDocketEntry(ctx, accountID, jurisdiction, instance, r, result)
		case *domain.Hearing:
			err = s.upsertWithRetry(ctx, result, func() (database.RowOutcome, error) {
				return s.records.UpsertHearing(ctx, accountID, jurisdiction, instance, r)
			})
		case *domain.PendingItem:
			err = s.upsertWithRetry(ctx, result, func() (database.RowOutcome, error) {
				return s.records.UpsertPendingItem(ctx, accountID, jurisdiction, instance, r)
			})
		case *domain.TimelineEvent:
			// Timeline events are deduplicated across the batch first.
			timeline = append(timeline, r)
			continue
		default:
			err = fmt.Errorf("unsupported record type %T", record)
		}

		if err != nil {
			result.Errors++
			s.log.Error("record failed to sync",
				"natural_key", record.NaturalKey(),
				"error", err,
			)
		}
	}

	if len(timeline) > 0 {
		if err := s.syncTimeline(ctx, accountID, jurisdiction, instance, timeline, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// syncDocketEntry merges one docket entry into the unified-case view.
func (s *Syncer) syncDocketEntry(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	entry *domain.DocketEntry,
	result *Result,
) error {
	unified, err := s.ensureCase(ctx, accountID, entry.CaseNumber, instance)
	if err != nil {
		return err
	}

	existing, err := s.cases.GetInstance(ctx, unified.ID, jurisdiction, instance)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created, createErr := s.cases.CreateInstance(ctx, &domain.CaseInstance{
			CaseID:       unified.ID,
			PortalID:     entry.PortalID,
			Jurisdiction: jurisdiction,
			Instance:     instance,
			Class:        entry.Class,
			Subject:      entry.Subject,
			Claimant:     entry.Claimant,
			Defendant:    entry.Defendant,
			Archived:     entry.Archived,
			FiledAt:      entry.FiledAt,
		})
		if createErr != nil {
			return createErr
		}
		if created {
			result.Inserted++
		} else {
			// A concurrent run created it; treat as unchanged.
			result.Unchanged++
		}
	case err != nil:
		return err
	default:
		if instanceMatches(existing, entry) {
			result.Unchanged++
		} else {
			existing.PortalID = entry.PortalID
			existing.Class = entry.Class
			existing.Subject = entry.Subject
			existing.Claimant = entry.Claimant
			existing.Defendant = entry.Defendant
			existing.Archived = entry.Archived
			existing.FiledAt = entry.FiledAt
			if updateErr := s.cases.UpdateInstance(ctx, existing); updateErr != nil {
				return updateErr
			}
			result.Updated++
		}
	}

	return s.recomputeCurrentInstance(ctx, accountID, entry.CaseNumber, unified.ID)
}

// instanceMatches reports whether the stored instance already carries the
// docket entry's fields.
func instanceMatches(existing *domain.CaseInstance, entry *domain.DocketEntry) bool {
	return existing.PortalID == entry.PortalID &&
		existing.Class == entry.Class &&
		existing.Subject == entry.Subject &&
		existing.Claimant == entry.Claimant &&
		existing.Defendant == entry.Defendant &&
		existing.Archived == entry.Archived &&
		existing.FiledAt.Equal(entry.FiledAt)
}

// ensureCase fetches the unified case, creating it when absent. A
// creation race resolves by re-fetching the winner's row.
func (s *Syncer) ensureCase(
	ctx context.Context,
	accountID int64,
	caseNumber string,
	instance domain.Instance,
) (*domain.UnifiedCase, error) {
	unified, err := s.cases.GetByNumber(ctx, accountID, caseNumber)
	if err == nil {
		return unified, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	candidate := &domain.UnifiedCase{
		CaseNumber:      caseNumber,
		AccountID:       accountID,
		Origin:          domain.OriginCapture,
		CurrentInstance: instance,
	}
	created, err := s.cases.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		return candidate, nil
	}

	return s.cases.GetByNumber(ctx, accountID, caseNumber)
}

// recomputeCurrentInstance rederives the case's current instance from its
// per-instance sub-records: the highest-ranked non-archived instance, or
// the highest-ranked one when everything is archived.
func (s *Syncer) recomputeCurrentInstance(
	ctx context.Context,
	accountID int64,
	caseNumber string,
	caseID int64,
) error {
	unified, err := s.cases.GetByNumber(ctx, accountID, caseNumber)
	if err != nil {
		return err
	}

	current := CurrentInstance(unified.Instances)
	if current == "" || current == unified.CurrentInstance {
		return nil
	}

	return s.cases.UpdateCurrentInstance(ctx, caseID, current)
}

// CurrentInstance picks the case's current instance from its sub-records:
// the highest-ranked non-archived instance, falling back to the
// highest-ranked archived one.
func CurrentInstance(instances []*domain.CaseInstance) domain.Instance {
	var active, any domain.Instance
	for _, ci := range instances {
		if ci.Instance.Rank() > any.Rank() {
			any = ci.Instance
		}
		if !ci.Archived && ci.Instance.Rank() > active.Rank() {
			active = ci.Instance
		}
	}
	if active != "" {
		return active
	}
	return any
}

// syncTimeline deduplicates the batch by content equality, then inserts
// what the store does not yet hold.
func (s *Syncer) syncTimeline(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	events []*domain.TimelineEvent,
	result *Result,
) error {
	deduped := DedupTimeline(events)
	result.Deduplicated += len(events) - len(deduped)

	keysByCase := make(map[string]map[string]struct{})

	for _, event := range events {
		if _, kept := deduped[event]; !kept {
			continue
		}

		keys, ok := keysByCase[event.CaseNumber]
		if !ok {
			var err error
			keys, err = s.records.TimelineEventKeys(ctx, accountID, event.CaseNumber)
			if err != nil {
				return fmt.Errorf("failed to load timeline keys: %w", err)
			}
			keysByCase[event.CaseNumber] = keys
		}

		if _, exists := keys[event.NaturalKey()]; exists {
			result.Unchanged++
			continue
		}

		outcome, err := s.records.InsertTimelineEvent(ctx, accountID, jurisdiction, instance, event)
		if err != nil {
			result.Errors++
			s.log.Error("timeline event failed to sync",
				"natural_key", event.NaturalKey(),
				"error", err,
			)
			continue
		}
		result.add(outcome)
		keys[event.NaturalKey()] = struct{}{}
	}

	return nil
}

// DedupTimeline removes content-equal duplicates from a batch of timeline
// events, keeping the first occurrence. Events captured independently per
// instance collapse here before merge.
func DedupTimeline(events []*domain.TimelineEvent) map[*domain.TimelineEvent]struct{} {
	kept := make(map[*domain.TimelineEvent]struct{}, len(events))
	var unique []*domain.TimelineEvent

	for _, event := range events {
		duplicate := false
		for _, seen := range unique {
			if event.ContentEqual(seen) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		unique = append(unique, event)
		kept[event] = struct{}{}
	}

	return kept
}

// upsertWithRetry runs one upsert, retrying exactly once when a
// natural-key race surfaces as a persistence conflict. The retry lands on
// the update path because the winner's row now exists.
func (s *Syncer) upsertWithRetry(
	ctx context.Context,
	result *Result,
	upsert func() (database.RowOutcome, error),
) error {
	outcome, err := upsert()
	if err != nil && domain.CodeOf(err) == domain.CodePersistenceConflict {
		outcome, err = upsert()
	}
	if err != nil {
		return err
	}
	result.add(outcome)
	return nil
}
