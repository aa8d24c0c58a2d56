package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
	"github.com/jonesrussell/courtcapture/internal/scheduler"
	"github.com/jonesrussell/courtcapture/internal/syncer"
)

// Outcome is the combined result of one capture plus its
// synchronization.
type Outcome struct {
	Run                 *domain.CaptureRun `json:"run"`
	Sync                *syncer.Result     `json:"sync,omitempty"`
	DocumentsDownloaded int                `json:"documents_downloaded,omitempty"`
	DocumentsFailed     int                `json:"documents_failed,omitempty"`
}

// Service runs the full capture pipeline: execute a run, then hand its
// records to the persistence synchronizer.
type Service struct {
	executor *Executor
	syncer   *syncer.Syncer
	log      logger.Interface
}

// NewService creates a capture service.
func NewService(executor *Executor, sync *syncer.Syncer, log logger.Interface) *Service {
	return &Service{executor: executor, syncer: sync, log: log.WithComponent("capture")}
}

// Capture executes one run and synchronizes its records. Failed runs
// return the finalized run in the outcome along with the terminal error;
// nothing is synchronized for them.
func (s *Service) Capture(ctx context.Context, req *Request) (*Outcome, error) {
	result, err := s.executor.Run(ctx, req)
	if err != nil {
		if result == nil {
			return nil, err
		}
		return &Outcome{Run: result.Run}, err
	}

	outcome := &Outcome{
		Run:                 result.Run,
		DocumentsDownloaded: result.DocumentsDownloaded,
		DocumentsFailed:     result.DocumentsFailed,
	}

	syncResult, err := s.syncer.Sync(ctx, req.AccountID, req.Jurisdiction, req.Instance, result.Records)
	if err != nil {
		return outcome, fmt.Errorf("failed to synchronize records: %w", err)
	}
	outcome.Sync = syncResult

	s.log.WithRunID(result.Run.ID).Info("capture synchronized",
		"inserted", syncResult.Inserted,
		"updated", syncResult.Updated,
		"unchanged", syncResult.Unchanged,
		"deduplicated", syncResult.Deduplicated,
		"errors", syncResult.Errors,
	)

	return outcome, nil
}

// ScheduleRunner adapts the capture service to the scheduler's Runner
// contract.
type ScheduleRunner struct {
	service *Service
}

// NewScheduleRunner creates a runner backed by the capture service.
func NewScheduleRunner(service *Service) *ScheduleRunner {
	return &ScheduleRunner{service: service}
}

// Execute implements scheduler.Runner.
func (r *ScheduleRunner) Execute(
	ctx context.Context,
	schedule *domain.ScheduleDefinition,
	scope scheduler.ScopeKey,
) error {
	req, err := RequestFromSchedule(schedule, scope)
	if err != nil {
		return err
	}

	_, err = r.service.Capture(ctx, req)
	return err
}

// RequestFromSchedule builds a capture request from a schedule and one
// of its resolved scopes, decoding the kind-specific extra parameters.
func RequestFromSchedule(schedule *domain.ScheduleDefinition, scope scheduler.ScopeKey) (*Request, error) {
	var extra domain.ScheduleExtraParams
	if len(schedule.ExtraParams) > 0 {
		if err := mapstructure.Decode(map[string]any(schedule.ExtraParams), &extra); err != nil {
			return nil, fmt.Errorf("schedule %d has malformed extra params: %w", schedule.ID, err)
		}
	}

	req := &Request{
		Kind:           scope.Kind,
		AccountID:      scope.AccountID,
		Jurisdiction:   scope.Jurisdiction,
		Instance:       scope.Instance,
		DeadlineFilter: extra.DeadlineFilter,
		Documents: DocumentOptions{
			Download:         extra.DownloadDocuments,
			SignedOnly:       extra.SignedOnly,
			SkipConfidential: extra.SkipConfidential,
			Types:            extra.DocumentTypes,
		},
	}

	if extra.DateFrom != "" {
		from, err := time.Parse("2006-01-02", extra.DateFrom)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: invalid data_inicio: %w", schedule.ID, err)
		}
		req.DateFrom = &from
	}
	if extra.DateTo != "" {
		to, err := time.Parse("2006-01-02", extra.DateTo)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: invalid data_fim: %w", schedule.ID, err)
		}
		req.DateTo = &to
	}

	return req, nil
}
