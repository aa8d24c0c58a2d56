package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// CommunicationRepository handles stored external notices. Rows carry a
// unique constraint on content hash; duplicates never insert.
type CommunicationRepository struct {
	db *sqlx.DB
}

// NewCommunicationRepository creates a new communication repository.
func NewCommunicationRepository(db *sqlx.DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

// ExistsByHash reports whether a communication with the content hash is
// already stored.
func (r *CommunicationRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM communications WHERE content_hash = $1)`

	if err := r.db.GetContext(ctx, &exists, query, hash); err != nil {
		return false, fmt.Errorf("failed to check communication hash: %w", err)
	}

	return exists, nil
}

// Insert stores one communication. Returns false without error when the
// content hash already exists (a concurrent ingestion won the race).
func (r *CommunicationRepository) Insert(ctx context.Context, c *domain.Communication) (bool, error) {
	query := `
		INSERT INTO communications
			(content_hash, case_number, jurisdiction, instance, account_id, case_id, notice_text, noticed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		c.ContentHash,
		c.CaseNumber,
		c.Jurisdiction,
		c.Instance,
		c.AccountID,
		c.CaseID,
		c.NoticeText,
		c.NoticedAt,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert communication: %w", err)
	}

	return true, nil
}

// ListByCase retrieves the communications linked to a case.
func (r *CommunicationRepository) ListByCase(ctx context.Context, caseID int64) ([]*domain.Communication, error) {
	var comms []*domain.Communication
	query := `
		SELECT id, content_hash, case_number, jurisdiction, instance, account_id,
		       case_id, notice_text, noticed_at, created_at
		FROM communications
		WHERE case_id = $1
		ORDER BY noticed_at DESC
	`

	if err := r.db.SelectContext(ctx, &comms, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list communications: %w", err)
	}

	if comms == nil {
		comms = []*domain.Communication{}
	}

	return comms, nil
}
