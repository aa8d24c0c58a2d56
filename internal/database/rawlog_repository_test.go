package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/domain"
)

func newRawLogRepo(t *testing.T) (*database.RawLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewRawLogRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestRawLogRepository_Append(t *testing.T) {
	repo, mock, cleanup := newRawLogRepo(t)
	defer cleanup()

	created := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	entry := &domain.RawLogEntry{
		RunID:        "run-1",
		Kind:         domain.KindHearings,
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
		AccountID:    7,
		ContentHash:  "hash-1",
		Payload:      domain.JSONBMap{"idAudiencia": float64(9)},
		Status:       domain.RawLogSuccess,
		CreatedAt:    created,
	}

	mock.ExpectQuery("INSERT INTO raw_log_entries").
		WithArgs(
			"run-1",
			domain.KindHearings,
			"trt3",
			domain.InstanceFirst,
			int64(7),
			"hash-1",
			&entry.Payload,
			domain.RawLogSuccess,
			"",
			created,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.ID != 11 {
		t.Errorf("Append() id = %d, want 11", entry.ID)
	}

	expectationsMet(t, mock)
}

func TestRawLogRepository_Count_FilterArgs(t *testing.T) {
	repo, mock, cleanup := newRawLogRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM raw_log_entries").
		WithArgs("run-1", domain.RawLogError).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background(), domain.RawLogFilter{
		RunID:  "run-1",
		Status: domain.RawLogError,
	})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	expectationsMet(t, mock)
}

func TestRawLogRepository_AggregateByStatus(t *testing.T) {
	repo, mock, cleanup := newRawLogRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS count").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("error", 2).
			AddRow("success", 40))

	counts, err := repo.AggregateByStatus(context.Background(), domain.RawLogFilter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("AggregateByStatus() error = %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("AggregateByStatus() buckets = %d, want 2", len(counts))
	}
	if counts[1].Status != domain.RawLogSuccess || counts[1].Count != 40 {
		t.Errorf("AggregateByStatus() = %+v, want success/40", counts[1])
	}

	expectationsMet(t, mock)
}

func TestRawLogRepository_GapRows(t *testing.T) {
	repo, mock, cleanup := newRawLogRepo(t)
	defer cleanup()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// GapRows forces status=success into the filter.
	mock.ExpectQuery("JOIN capture_runs r ON r.id = e.run_id").
		WithArgs(domain.RawLogSuccess, int64(7)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"kind", "jurisdiction", "instance", "day", "expected", "retrieved"},
		).AddRow("acervo_geral", "trt3", "primeiro_grau", day, 50, 48))

	rows, err := repo.GapRows(context.Background(), domain.RawLogFilter{AccountID: 7})
	if err != nil {
		t.Fatalf("GapRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("GapRows() rows = %d, want 1", len(rows))
	}
	if rows[0].Expected != 50 || rows[0].Retrieved != 48 {
		t.Errorf("GapRows() = %+v, want expected 50 retrieved 48", rows[0])
	}

	expectationsMet(t, mock)
}
