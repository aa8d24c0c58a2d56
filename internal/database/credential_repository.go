package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
)

// CredentialRepository reads sealed credentials. The rows are owned by the
// credential-management feature; this service never writes them.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new credential repository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetActive returns the active sealed credential for the triple, or
// domain.ErrCredentialNotFound.
func (r *CredentialRepository) GetActive(
	ctx context.Context,
	accountID int64,
	jurisdiction string,
	instance domain.Instance,
) (*credentials.Stored, error) {
	var stored credentials.Stored
	query := `
		SELECT id, account_id, jurisdiction, instance, sealed_secret, active, created_at
		FROM credentials
		WHERE account_id = $1 AND jurisdiction = $2 AND instance = $3 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &stored, query, accountID, jurisdiction, instance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf(
				"account %d, %s/%s: %w",
				accountID, jurisdiction, instance, domain.ErrCredentialNotFound,
			)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &stored, nil
}

// GetByIDs returns the credentials with the given IDs, active or not.
// Missing IDs are silently absent from the result; the scheduler decides
// what a missing credential means for its schedule.
func (r *CredentialRepository) GetByIDs(ctx context.Context, ids []int64) ([]*credentials.Stored, error) {
	if len(ids) == 0 {
		return []*credentials.Stored{}, nil
	}

	var stored []*credentials.Stored
	query := `
		SELECT id, account_id, jurisdiction, instance, sealed_secret, active, created_at
		FROM credentials
		WHERE id = ANY($1)
		ORDER BY id
	`

	if err := r.db.SelectContext(ctx, &stored, query, pq.Int64Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get credentials by id: %w", err)
	}

	return stored, nil
}
