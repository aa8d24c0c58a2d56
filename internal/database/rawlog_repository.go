package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// MaxRawLogPageSize caps raw log listing page sizes.
const MaxRawLogPageSize = 100

// RawLogRepository handles the append-only raw capture log. No update or
// delete operation is exposed; entries are retained for audit and
// recovery.
type RawLogRepository struct {
	db *sqlx.DB
}

// NewRawLogRepository creates a new raw log repository.
func NewRawLogRepository(db *sqlx.DB) *RawLogRepository {
	return &RawLogRepository{db: db}
}

// Append writes one raw log entry. Called once per retrieved item or per
// terminal item error, before the run advances to the next page.
func (r *RawLogRepository) Append(ctx context.Context, entry *domain.RawLogEntry) error {
	query := `
		INSERT INTO raw_log_entries
			(run_id, kind, jurisdiction, instance, account_id, content_hash, payload, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.RunID,
		entry.Kind,
		entry.Jurisdiction,
		entry.Instance,
		entry.AccountID,
		entry.ContentHash,
		&entry.Payload,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append raw log entry: %w", err)
	}

	return nil
}

// filterConditions builds the WHERE conditions and args for a filter.
func filterConditions(filter domain.RawLogFilter) ([]string, []any) {
	var conds []string
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		conds = append(conds, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Jurisdiction != "" {
		args = append(args, filter.Jurisdiction)
		conds = append(conds, fmt.Sprintf("jurisdiction = $%d", len(args)))
	}
	if filter.Instance != "" {
		args = append(args, filter.Instance)
		conds = append(conds, fmt.Sprintf("instance = $%d", len(args)))
	}
	if filter.AccountID != 0 {
		args = append(args, filter.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}

	return conds, args
}

// Query returns a page of raw log entries matching the filter, newest
// first. Page numbering starts at 1; page sizes are capped at
// MaxRawLogPageSize.
func (r *RawLogRepository) Query(
	ctx context.Context,
	filter domain.RawLogFilter,
	page, pageSize int,
) ([]*domain.RawLogEntry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxRawLogPageSize {
		pageSize = MaxRawLogPageSize
	}

	conds, args := filterConditions(filter)
	args = append(args, pageSize, (page-1)*pageSize)

	query := `
		SELECT id, run_id, kind, jurisdiction, instance, account_id, content_hash,
		       payload, status, COALESCE(error_message, '') AS error_message, created_at
		FROM raw_log_entries` + whereClause(conds) + fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var entries []*domain.RawLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query raw log entries: %w", err)
	}

	if entries == nil {
		entries = []*domain.RawLogEntry{}
	}

	return entries, nil
}

// Count returns the number of entries matching the filter.
func (r *RawLogRepository) Count(ctx context.Context, filter domain.RawLogFilter) (int, error) {
	conds, args := filterConditions(filter)

	var count int
	query := `SELECT COUNT(*) FROM raw_log_entries` + whereClause(conds)
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count raw log entries: %w", err)
	}

	return count, nil
}

// AggregateByStatus returns entry counts per status for the filter.
func (r *RawLogRepository) AggregateByStatus(
	ctx context.Context,
	filter domain.RawLogFilter,
) ([]*domain.StatusCount, error) {
	conds, args := filterConditions(filter)

	query := `
		SELECT status, COUNT(*) AS count
		FROM raw_log_entries` + whereClause(conds) + `
		GROUP BY status
		ORDER BY status`

	var counts []*domain.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate raw log by status: %w", err)
	}

	if counts == nil {
		counts = []*domain.StatusCount{}
	}

	return counts, nil
}

// AggregateByJurisdiction returns success and error counts per
// (jurisdiction, instance) for the filter.
func (r *RawLogRepository) AggregateByJurisdiction(
	ctx context.Context,
	filter domain.RawLogFilter,
) ([]*domain.JurisdictionStats, error) {
	conds, args := filterConditions(filter)

	query := `
		SELECT jurisdiction, instance,
		       COUNT(*) FILTER (WHERE status = 'success') AS successes,
		       COUNT(*) FILTER (WHERE status = 'error') AS errors
		FROM raw_log_entries` + whereClause(conds) + `
		GROUP BY jurisdiction, instance
		ORDER BY jurisdiction, instance`

	var stats []*domain.JurisdictionStats
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate raw log by jurisdiction: %w", err)
	}

	if stats == nil {
		stats = []*domain.JurisdictionStats{}
	}

	return stats, nil
}

// GapRow is one (kind, jurisdiction, instance, day) bucket of successful
// entries joined with the totalizer recorded on the owning runs.
type GapRow struct {
	Kind         domain.CaptureKind `db:"kind"`
	Jurisdiction string             `db:"jurisdiction"`
	Instance     domain.Instance    `db:"instance"`
	Day          time.Time          `db:"day"`
	Expected     int                `db:"expected"`
	Retrieved    int                `db:"retrieved"`
}

// GapRows groups successful entries by (kind, jurisdiction, instance,
// day), counting distinct content hashes as retrieved and taking the
// largest totalizer recorded on the owning runs as expected.
func (r *RawLogRepository) GapRows(ctx context.Context, filter domain.RawLogFilter) ([]*GapRow, error) {
	successFilter := filter
	successFilter.Status = domain.RawLogSuccess

	conds, args := filterConditions(successFilter)
	for i, cond := range conds {
		conds[i] = "e." + cond
	}

	query := `
		SELECT e.kind, e.jurisdiction, e.instance,
		       DATE_TRUNC('day', e.created_at) AS day,
		       MAX(r.totalizer) AS expected,
		       COUNT(DISTINCT e.content_hash) AS retrieved
		FROM raw_log_entries e
		JOIN capture_runs r ON r.id = e.run_id` + whereClause(conds) + `
		GROUP BY e.kind, e.jurisdiction, e.instance, DATE_TRUNC('day', e.created_at)
		ORDER BY day, e.jurisdiction, e.instance, e.kind`

	var rows []*GapRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query gap rows: %w", err)
	}

	if rows == nil {
		rows = []*GapRow{}
	}

	return rows, nil
}
