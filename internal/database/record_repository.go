package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// RowOutcome classifies the effect of one upsert.
type RowOutcome string

const (
	// RowInserted means a new row was written.
	RowInserted RowOutcome = "inserted"
	// RowUpdated means an existing row changed.
	RowUpdated RowOutcome = "updated"
	// RowUnchanged means the stored row was already identical, so no
	// write happened and no update timestamp churned.
	RowUnchanged RowOutcome = "unchanged"
)

// RecordRepository upserts per-kind normalized records (hearings, pending
// items, timeline events) under their natural keys.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

type hearingRow struct {
	ID        int64  `db:"id"`
	Type      string `db:"type"`
	StartsAt  string `db:"starts_at"`
	Courtroom string `db:"courtroom"`
	Status    string `db:"status"`
}

// UpsertHearing writes one hearing under its natural key
// (account, jurisdiction, instance, case number, portal id).
func (r *RecordRepository) UpsertHearing(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	h *domain.Hearing,
) (RowOutcome, error) {
	var existing hearingRow
	selectQuery := `
		SELECT id, type, to_char(starts_at, 'YYYY-MM-DD"T"HH24:MI:SS') AS starts_at, courtroom, status
		FROM hearings
		WHERE account_id = $1 AND jurisdiction = $2 AND instance = $3
		  AND case_number = $4 AND portal_id = $5
	`

	err := r.db.GetContext(ctx, &existing, selectQuery, accountID, jurisdiction, instance, h.CaseNumber, h.PortalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.insertHearing(ctx, accountID, jurisdiction, instance, h)
	case err != nil:
		return "", fmt.Errorf("failed to look up hearing: %w", err)
	}

	if existing.Type == h.Type &&
		existing.StartsAt == h.StartsAt.Format("2006-01-02T15:04:05") &&
		existing.Courtroom == h.Courtroom &&
		existing.Status == h.Status {
		return RowUnchanged, nil
	}

	updateQuery := `
		UPDATE hearings
		SET type = $1, starts_at = $2, courtroom = $3, status = $4, updated_at = NOW()
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, updateQuery, h.Type, h.StartsAt, h.Courtroom, h.Status, existing.ID)
	if updateErr := execRequireRows(result, err, fmt.Errorf("hearing %d: %w", existing.ID, domain.ErrNotFound)); updateErr != nil {
		return "", fmt.Errorf("failed to update hearing: %w", updateErr)
	}

	return RowUpdated, nil
}

func (r *RecordRepository) insertHearing(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	h *domain.Hearing,
) (RowOutcome, error) {
	insertQuery := `
		INSERT INTO hearings
			(account_id, jurisdiction, instance, case_number, portal_id, type, starts_at, courtroom, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_id, jurisdiction, instance, case_number, portal_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, insertQuery,
		accountID, jurisdiction, instance, h.CaseNumber, h.PortalID,
		h.Type, h.StartsAt, h.Courtroom, h.Status,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// A concurrent writer won the race.
			return "", domain.NewCaptureError(domain.CodePersistenceConflict, "hearing insert race", nil)
		}
		return "", fmt.Errorf("failed to insert hearing: %w", err)
	}

	return RowInserted, nil
}

type pendingRow struct {
	ID         int64          `db:"id"`
	NoticeType string         `db:"notice_type"`
	Deadline   sql.NullString `db:"deadline"`
	DocumentID int64          `db:"document_id"`
}

// UpsertPendingItem writes one pending-notice item under its natural key.
func (r *RecordRepository) UpsertPendingItem(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	p *domain.PendingItem,
) (RowOutcome, error) {
	var existing pendingRow
	selectQuery := `
		SELECT id, notice_type, to_char(deadline, 'YYYY-MM-DD"T"HH24:MI:SS') AS deadline, document_id
		FROM pending_items
		WHERE account_id = $1 AND jurisdiction = $2 AND instance = $3
		  AND case_number = $4 AND portal_id = $5
	`

	err := r.db.GetContext(ctx, &existing, selectQuery, accountID, jurisdiction, instance, p.CaseNumber, p.PortalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return r.insertPendingItem(ctx, accountID, jurisdiction, instance, p)
	case err != nil:
		return "", fmt.Errorf("failed to look up pending item: %w", err)
	}

	deadline := ""
	if p.Deadline != nil {
		deadline = p.Deadline.Format("2006-01-02T15:04:05")
	}
	if existing.NoticeType == p.NoticeType &&
		existing.Deadline.String == deadline &&
		existing.DocumentID == p.DocumentID {
		return RowUnchanged, nil
	}

	updateQuery := `
		UPDATE pending_items
		SET notice_type = $1, deadline = $2, document_id = $3, noticed_at = $4, updated_at = NOW()
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, updateQuery, p.NoticeType, p.Deadline, p.DocumentID, p.NoticedAt, existing.ID)
	if updateErr := execRequireRows(result, err, fmt.Errorf("pending item %d: %w", existing.ID, domain.ErrNotFound)); updateErr != nil {
		return "", fmt.Errorf("failed to update pending item: %w", updateErr)
	}

	return RowUpdated, nil
}

func (r *RecordRepository) insertPendingItem(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	p *domain.PendingItem,
) (RowOutcome, error) {
	insertQuery := `
		INSERT INTO pending_items
			(account_id, jurisdiction, instance, case_number, portal_id, notice_type, deadline, document_id, noticed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_id, jurisdiction, instance, case_number, portal_id) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, insertQuery,
		accountID, jurisdiction, instance, p.CaseNumber, p.PortalID,
		p.NoticeType, p.Deadline, p.DocumentID, p.NoticedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewCaptureError(domain.CodePersistenceConflict, "pending item insert race", nil)
		}
		return "", fmt.Errorf("failed to insert pending item: %w", err)
	}

	return RowInserted, nil
}

// TimelineEventKeys returns the natural keys of the timeline events
// already stored for a case scope. Used by the synchronizer to
// deduplicate cross-instance captures before merge.
func (r *RecordRepository) TimelineEventKeys(
	ctx context.Context,
	accountID int64,
	caseNumber string,
) (map[string]struct{}, error) {
	query := `
		SELECT natural_key
		FROM timeline_events
		WHERE account_id = $1 AND case_number = $2
	`

	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, accountID, caseNumber); err != nil {
		return nil, fmt.Errorf("failed to list timeline event keys: %w", err)
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	return set, nil
}

// InsertTimelineEvent writes one timeline event under its natural key.
// Returns RowUnchanged when the event already exists.
func (r *RecordRepository) InsertTimelineEvent(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
	e *domain.TimelineEvent,
) (RowOutcome, error) {
	insertQuery := `
		INSERT INTO timeline_events
			(account_id, jurisdiction, instance, case_number, natural_key, portal_id,
			 title, description, occurred_at, document_id, document_type, signed, confidential, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (account_id, case_number, natural_key) DO NOTHING
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx, insertQuery,
		accountID, jurisdiction, instance, e.CaseNumber, e.NaturalKey(), e.PortalID,
		e.Title, e.Description, e.OccurredAt, e.DocumentID, e.DocumentType, e.Signed, e.Confidential,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RowUnchanged, nil
		}
		return "", fmt.Errorf("failed to insert timeline event: %w", err)
	}

	return RowInserted, nil
}
