package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// CaptureRunRepository handles database operations for capture runs.
type CaptureRunRepository struct {
	db *sqlx.DB
}

// NewCaptureRunRepository creates a new capture run repository.
func NewCaptureRunRepository(db *sqlx.DB) *CaptureRunRepository {
	return &CaptureRunRepository{db: db}
}

// Create inserts a new capture run at run start.
func (r *CaptureRunRepository) Create(ctx context.Context, run *domain.CaptureRun) error {
	query := `
		INSERT INTO capture_runs (id, kind, jurisdiction, instance, account_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Kind,
		run.Jurisdiction,
		run.Instance,
		run.AccountID,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create capture run: %w", err)
	}

	return nil
}

// Finalize records the terminal state of a run. Runs are immutable after
// finalization.
func (r *CaptureRunRepository) Finalize(ctx context.Context, run *domain.CaptureRun) error {
	query := `
		UPDATE capture_runs
		SET status = $1, outcome = $2, totalizer = $3, retrieved = $4,
		    error_code = $5, error_message = $6, finished_at = $7
		WHERE id = $8 AND status = 'in_progress'
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.Status,
		run.Outcome,
		run.Totalizer,
		run.Retrieved,
		run.ErrorCode,
		run.ErrorMessage,
		run.FinishedAt,
		run.ID,
	)

	return execRequireRows(result, err, fmt.Errorf("capture run not found or already finalized: %s", run.ID))
}

// GetByID retrieves a capture run by its ID.
func (r *CaptureRunRepository) GetByID(ctx context.Context, id string) (*domain.CaptureRun, error) {
	var run domain.CaptureRun
	query := `
		SELECT id, kind, jurisdiction, instance, account_id, status,
		       COALESCE(outcome, '') AS outcome, totalizer, retrieved,
		       COALESCE(error_code, '') AS error_code,
		       COALESCE(error_message, '') AS error_message,
		       started_at, finished_at
		FROM capture_runs
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("capture run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get capture run: %w", err)
	}

	return &run, nil
}

// List retrieves recent capture runs for an account, newest first.
func (r *CaptureRunRepository) List(ctx context.Context, accountID int64, limit, offset int) ([]*domain.CaptureRun, error) {
	var runs []*domain.CaptureRun
	query := `
		SELECT id, kind, jurisdiction, instance, account_id, status,
		       COALESCE(outcome, '') AS outcome, totalizer, retrieved,
		       COALESCE(error_code, '') AS error_code,
		       COALESCE(error_message, '') AS error_message,
		       started_at, finished_at
		FROM capture_runs
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &runs, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.CaptureRun{}
	}

	return runs, nil
}
