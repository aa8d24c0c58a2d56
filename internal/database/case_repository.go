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

// CaseRepository handles unified cases and their per-instance sub-records.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// GetByNumber retrieves a unified case with its instance sub-records, or
// domain.ErrNotFound.
func (r *CaseRepository) GetByNumber(ctx context.Context, accountID int64, caseNumber string) (*domain.UnifiedCase, error) {
	var c domain.UnifiedCase
	query := `
		SELECT id, case_number, account_id, origin, current_instance, created_at, updated_at
		FROM cases
		WHERE account_id = $1 AND case_number = $2
	`

	err := r.db.GetContext(ctx, &c, query, accountID, caseNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case %s: %w", caseNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	instancesQuery := `
		SELECT id, case_id, portal_id, jurisdiction, instance, class, subject,
		       claimant, defendant, archived, filed_at, updated_at
		FROM case_instances
		WHERE case_id = $1
		ORDER BY instance
	`
	if err = r.db.SelectContext(ctx, &c.Instances, instancesQuery, c.ID); err != nil {
		return nil, fmt.Errorf("failed to get case instances: %w", err)
	}

	return &c, nil
}

// Create inserts a unified case. Returns false without error when a
// concurrent writer already created the case (natural-key race).
func (r *CaseRepository) Create(ctx context.Context, c *domain.UnifiedCase) (bool, error) {
	query := `
		INSERT INTO cases (case_number, account_id, origin, current_instance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (account_id, case_number) DO NOTHING
		RETURNING id
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, c.CaseNumber, c.AccountID, c.Origin, c.CurrentInstance, now).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create case: %w", err)
	}

	c.CreatedAt = now
	c.UpdatedAt = now
	return true, nil
}

// UpdateCurrentInstance records the recomputed current instance of a case.
func (r *CaseRepository) UpdateCurrentInstance(ctx context.Context, caseID int64, instance domain.Instance) error {
	query := `UPDATE cases SET current_instance = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, instance, caseID)
	return execRequireRows(result, err, fmt.Errorf("case %d: %w", caseID, domain.ErrNotFound))
}

// GetInstance retrieves one per-instance sub-record, or domain.ErrNotFound.
func (r *CaseRepository) GetInstance(
	ctx context.Context,
	caseID int64,
	jurisdiction string,
	instance domain.Instance,
) (*domain.CaseInstance, error) {
	var ci domain.CaseInstance
	query := `
		SELECT id, case_id, portal_id, jurisdiction, instance, class, subject,
		       claimant, defendant, archived, filed_at, updated_at
		FROM case_instances
		WHERE case_id = $1 AND jurisdiction = $2 AND instance = $3
	`

	err := r.db.GetContext(ctx, &ci, query, caseID, jurisdiction, instance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case instance %d/%s/%s: %w", caseID, jurisdiction, instance, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get case instance: %w", err)
	}

	return &ci, nil
}

// CreateInstance inserts a per-instance sub-record. Returns false without
// error when a concurrent writer already created it.
func (r *CaseRepository) CreateInstance(ctx context.Context, ci *domain.CaseInstance) (bool, error) {
	query := `
		INSERT INTO case_instances
			(case_id, portal_id, jurisdiction, instance, class, subject, claimant, defendant, archived, filed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (case_id, jurisdiction, instance) DO NOTHING
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		ci.CaseID,
		ci.PortalID,
		ci.Jurisdiction,
		ci.Instance,
		ci.Class,
		ci.Subject,
		ci.Claimant,
		ci.Defendant,
		ci.Archived,
		ci.FiledAt,
	).Scan(&ci.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create case instance: %w", err)
	}

	return true, nil
}

// UpdateInstance updates a per-instance sub-record.
func (r *CaseRepository) UpdateInstance(ctx context.Context, ci *domain.CaseInstance) error {
	query := `
		UPDATE case_instances
		SET portal_id = $1, class = $2, subject = $3, claimant = $4,
		    defendant = $5, archived = $6, filed_at = $7, updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		ci.PortalID,
		ci.Class,
		ci.Subject,
		ci.Claimant,
		ci.Defendant,
		ci.Archived,
		ci.FiledAt,
		ci.ID,
	)

	return execRequireRows(result, err, fmt.Errorf("case instance %d: %w", ci.ID, domain.ErrNotFound))
}

// FindForNotice matches a case for an incoming external notice by case
// number, jurisdiction and instance. Returns domain.ErrNotFound when no
// case matches.
func (r *CaseRepository) FindForNotice(
	ctx context.Context,
	accountID int64,
	caseNumber, jurisdiction string,
	instance domain.Instance,
) (*domain.UnifiedCase, error) {
	var c domain.UnifiedCase
	query := `
		SELECT c.id, c.case_number, c.account_id, c.origin, c.current_instance, c.created_at, c.updated_at
		FROM cases c
		JOIN case_instances ci ON ci.case_id = c.id
		WHERE c.account_id = $1 AND c.case_number = $2
		  AND ci.jurisdiction = $3 AND ci.instance = $4
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &c, query, accountID, caseNumber, jurisdiction, instance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("case for notice %s: %w", caseNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to match case for notice: %w", err)
	}

	return &c, nil
}
