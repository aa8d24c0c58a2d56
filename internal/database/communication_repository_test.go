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

func newCommunicationRepo(t *testing.T) (*database.CommunicationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewCommunicationRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestCommunicationRepository_ExistsByHash(t *testing.T) {
	repo, mock, cleanup := newCommunicationRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("ExistsByHash() error = %v", err)
	}
	if !exists {
		t.Error("ExistsByHash() = false, want true")
	}

	expectationsMet(t, mock)
}

func TestCommunicationRepository_Insert(t *testing.T) {
	repo, mock, cleanup := newCommunicationRepo(t)
	defer cleanup()

	caseID := int64(10)
	noticed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	comm := &domain.Communication{
		ContentHash:  "hash-1",
		CaseNumber:   "0001234-11.2025.5.03.0001",
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
		AccountID:    7,
		CaseID:       &caseID,
		NoticeText:   "Intimacao para manifestacao",
		NoticedAt:    noticed,
	}

	mock.ExpectQuery("INSERT INTO communications").
		WithArgs(
			"hash-1",
			comm.CaseNumber,
			"trt3",
			domain.InstanceFirst,
			int64(7),
			&caseID,
			comm.NoticeText,
			noticed,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), noticed))

	inserted, err := repo.Insert(context.Background(), comm)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if !inserted {
		t.Error("Insert() = false, want true")
	}
	if comm.ID != 5 {
		t.Errorf("Insert() id = %d, want 5", comm.ID)
	}

	expectationsMet(t, mock)
}

func TestCommunicationRepository_Insert_DuplicateHash(t *testing.T) {
	repo, mock, cleanup := newCommunicationRepo(t)
	defer cleanup()

	// ON CONFLICT DO NOTHING returns no row for a duplicate hash.
	mock.ExpectQuery("INSERT INTO communications").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	inserted, err := repo.Insert(context.Background(), &domain.Communication{ContentHash: "hash-1"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted {
		t.Error("Insert() = true, want false for duplicate")
	}

	expectationsMet(t, mock)
}

func TestCredentialRepository_GetByIDs_Empty(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer mockDB.Close()

	repo := database.NewCredentialRepository(sqlx.NewDb(mockDB, "postgres"))

	// No query runs for an empty id list.
	stored, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("GetByIDs() = %d credentials, want 0", len(stored))
	}

	expectationsMet(t, mock)
}
