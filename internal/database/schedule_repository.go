package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// ScheduleRepository handles database operations for schedules
// (agendamentos).
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `
	id, account_id, credential_ids, kind, periodicity, interval_days,
	time_of_day, active, extra_params, next_run, last_run, created_at, updated_at
`

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, s *domain.ScheduleDefinition) error {
	query := `
		INSERT INTO schedules
			(account_id, credential_ids, kind, periodicity, interval_days,
			 time_of_day, active, extra_params, next_run, last_run)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		s.AccountID,
		s.CredentialIDs,
		s.Kind,
		s.Periodicity,
		s.IntervalDays,
		s.TimeOfDay,
		s.Active,
		&s.ExtraParams,
		s.NextRun,
		s.LastRun,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	return nil
}

// GetByID retrieves a schedule by its ID.
func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*domain.ScheduleDefinition, error) {
	var s domain.ScheduleDefinition
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return &s, nil
}

// List retrieves schedules, optionally filtered by account.
func (r *ScheduleRepository) List(ctx context.Context, accountID int64, limit, offset int) ([]*domain.ScheduleDefinition, error) {
	var schedules []*domain.ScheduleDefinition
	var query string
	var args []any

	if accountID != 0 {
		query = `SELECT ` + scheduleColumns + `
			FROM schedules WHERE account_id = $1
			ORDER BY id LIMIT $2 OFFSET $3`
		args = []any{accountID, limit, offset}
	} else {
		query = `SELECT ` + scheduleColumns + `
			FROM schedules
			ORDER BY id LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	if schedules == nil {
		schedules = []*domain.ScheduleDefinition{}
	}

	return schedules, nil
}

// ListDue retrieves active schedules whose next run is at or before now.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduleDefinition, error) {
	var schedules []*domain.ScheduleDefinition
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE active = TRUE AND next_run <= $1
		ORDER BY next_run`

	if err := r.db.SelectContext(ctx, &schedules, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}

	if schedules == nil {
		schedules = []*domain.ScheduleDefinition{}
	}

	return schedules, nil
}

// Update updates an existing schedule definition.
func (r *ScheduleRepository) Update(ctx context.Context, s *domain.ScheduleDefinition) error {
	query := `
		UPDATE schedules
		SET credential_ids = $1, kind = $2, periodicity = $3, interval_days = $4,
		    time_of_day = $5, active = $6, extra_params = $7, next_run = $8,
		    updated_at = NOW()
		WHERE id = $9
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		s.CredentialIDs,
		s.Kind,
		s.Periodicity,
		s.IntervalDays,
		s.TimeOfDay,
		s.Active,
		&s.ExtraParams,
		s.NextRun,
		s.ID,
	)

	return execRequireRows(result, err, fmt.Errorf("schedule %d: %w", s.ID, domain.ErrNotFound))
}

// MarkExecuted records a completed invocation: last run advances and the
// next run is set. Only called after the run reached a terminal status;
// failed invocations leave the schedule due.
func (r *ScheduleRepository) MarkExecuted(ctx context.Context, id int64, lastRun, nextRun time.Time) error {
	query := `
		UPDATE schedules
		SET last_run = $1, next_run = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, lastRun, nextRun, id)
	return execRequireRows(result, err, fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound))
}

// Delete removes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM schedules WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, err, fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound))
}
