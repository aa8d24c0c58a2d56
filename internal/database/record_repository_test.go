package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/domain"
)

func newRecordRepo(t *testing.T) (*database.RecordRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewRecordRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

var hearingColumns = []string{"id", "type", "starts_at", "courtroom", "status"}

func testHearing() *domain.Hearing {
	return &domain.Hearing{
		PortalID:   55,
		CaseNumber: "0001234-11.2025.5.03.0001",
		Type:       "Una",
		StartsAt:   time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC),
		Courtroom:  "1a Vara do Trabalho",
		Status:     "designada",
	}
}

func TestRecordRepository_UpsertHearing_Insert(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	h := testHearing()

	mock.ExpectQuery("SELECT id, type").
		WithArgs(int64(7), "trt3", domain.InstanceFirst, h.CaseNumber, h.PortalID).
		WillReturnRows(sqlmock.NewRows(hearingColumns))

	mock.ExpectQuery("INSERT INTO hearings").
		WithArgs(
			int64(7), "trt3", domain.InstanceFirst, h.CaseNumber, h.PortalID,
			h.Type, h.StartsAt, h.Courtroom, h.Status,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	outcome, err := repo.UpsertHearing(context.Background(), 7, "trt3", domain.InstanceFirst, h)
	if err != nil {
		t.Fatalf("UpsertHearing() error = %v", err)
	}
	if outcome != database.RowInserted {
		t.Errorf("UpsertHearing() outcome = %q, want inserted", outcome)
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_UpsertHearing_Unchanged(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	h := testHearing()

	mock.ExpectQuery("SELECT id, type").
		WithArgs(int64(7), "trt3", domain.InstanceFirst, h.CaseNumber, h.PortalID).
		WillReturnRows(sqlmock.NewRows(hearingColumns).AddRow(
			int64(1), h.Type, "2025-07-01T14:00:00", h.Courtroom, h.Status,
		))

	outcome, err := repo.UpsertHearing(context.Background(), 7, "trt3", domain.InstanceFirst, h)
	if err != nil {
		t.Fatalf("UpsertHearing() error = %v", err)
	}
	if outcome != database.RowUnchanged {
		t.Errorf("UpsertHearing() outcome = %q, want unchanged", outcome)
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_UpsertHearing_Update(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	h := testHearing()

	mock.ExpectQuery("SELECT id, type").
		WithArgs(int64(7), "trt3", domain.InstanceFirst, h.CaseNumber, h.PortalID).
		WillReturnRows(sqlmock.NewRows(hearingColumns).AddRow(
			int64(1), h.Type, "2025-07-01T14:00:00", h.Courtroom, "cancelada",
		))

	mock.ExpectExec("UPDATE hearings").
		WithArgs(h.Type, h.StartsAt, h.Courtroom, h.Status, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := repo.UpsertHearing(context.Background(), 7, "trt3", domain.InstanceFirst, h)
	if err != nil {
		t.Fatalf("UpsertHearing() error = %v", err)
	}
	if outcome != database.RowUpdated {
		t.Errorf("UpsertHearing() outcome = %q, want updated", outcome)
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_UpsertHearing_InsertRace(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	h := testHearing()

	mock.ExpectQuery("SELECT id, type").
		WillReturnRows(sqlmock.NewRows(hearingColumns))

	// ON CONFLICT DO NOTHING returns no row when a concurrent writer won.
	mock.ExpectQuery("INSERT INTO hearings").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.UpsertHearing(context.Background(), 7, "trt3", domain.InstanceFirst, h)
	if domain.CodeOf(err) != domain.CodePersistenceConflict {
		t.Errorf("UpsertHearing() error code = %q, want persistence conflict", domain.CodeOf(err))
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_InsertTimelineEvent_Duplicate(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	e := &domain.TimelineEvent{
		PortalID:   9,
		CaseNumber: "0001234-11.2025.5.03.0001",
		Title:      "Juntada de peticao",
		OccurredAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("INSERT INTO timeline_events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	outcome, err := repo.InsertTimelineEvent(context.Background(), 7, "trt3", domain.InstanceFirst, e)
	if err != nil {
		t.Fatalf("InsertTimelineEvent() error = %v", err)
	}
	if outcome != database.RowUnchanged {
		t.Errorf("InsertTimelineEvent() outcome = %q, want unchanged", outcome)
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_TimelineEventKeys(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT natural_key").
		WithArgs(int64(7), "0001234-11.2025.5.03.0001").
		WillReturnRows(sqlmock.NewRows([]string{"natural_key"}).
			AddRow("0001234-11.2025.5.03.0001|2025-06-15T10:00:00Z|Juntada de peticao"))

	keys, err := repo.TimelineEventKeys(context.Background(), 7, "0001234-11.2025.5.03.0001")
	if err != nil {
		t.Fatalf("TimelineEventKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("TimelineEventKeys() = %d keys, want 1", len(keys))
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_UpsertPendingItem_Unchanged(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	deadline := time.Date(2025, 6, 20, 23, 59, 59, 0, time.UTC)
	p := &domain.PendingItem{
		PortalID:   77,
		CaseNumber: "0001234-11.2025.5.03.0001",
		NoticeType: "intimacao",
		Deadline:   &deadline,
		DocumentID: 4,
		NoticedAt:  time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery("SELECT id, notice_type").
		WithArgs(int64(7), "trt3", domain.InstanceFirst, p.CaseNumber, p.PortalID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "notice_type", "deadline", "document_id"}).
			AddRow(int64(2), "intimacao", "2025-06-20T23:59:59", int64(4)))

	outcome, err := repo.UpsertPendingItem(context.Background(), 7, "trt3", domain.InstanceFirst, p)
	if err != nil {
		t.Fatalf("UpsertPendingItem() error = %v", err)
	}
	if outcome != database.RowUnchanged {
		t.Errorf("UpsertPendingItem() outcome = %q, want unchanged", outcome)
	}

	expectationsMet(t, mock)
}

func TestRecordRepository_UpsertPendingItem_LookupError(t *testing.T) {
	repo, mock, cleanup := newRecordRepo(t)
	defer cleanup()

	p := &domain.PendingItem{PortalID: 77, CaseNumber: "0001234-11.2025.5.03.0001"}

	mock.ExpectQuery("SELECT id, notice_type").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.UpsertPendingItem(context.Background(), 7, "trt3", domain.InstanceFirst, p)
	if err == nil {
		t.Fatal("UpsertPendingItem() expected error")
	}

	expectationsMet(t, mock)
}
