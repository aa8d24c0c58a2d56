package domain

import (
	"fmt"
	"time"
)

// NormalizedRecord is the business-shape result of parsing one raw portal
// item. Records are transient: produced per run, consumed by the
// persistence synchronizer, never stored in this shape.
//
// Each capture kind has its own concrete record type; the interface is the
// tagged variant over them.
type NormalizedRecord interface {
	// RecordKind returns the capture kind that produced the record.
	RecordKind() CaptureKind
	// NaturalKey identifies the record within its
	// (kind, jurisdiction, instance) scope for upsert matching.
	NaturalKey() string
}

// DocketEntry is a case on the active or archived docket.
type DocketEntry struct {
	PortalID   int64     `json:"portal_id"`
	CaseNumber string    `json:"case_number"`
	Class      string    `json:"class"`
	Subject    string    `json:"subject"`
	Claimant   string    `json:"claimant"`
	Defendant  string    `json:"defendant"`
	FiledAt    time.Time `json:"filed_at"`
	Archived   bool      `json:"archived"`
}

// RecordKind implements NormalizedRecord.
func (d *DocketEntry) RecordKind() CaptureKind {
	if d.Archived {
		return KindArchivedDocket
	}
	return KindGeneralDocket
}

// NaturalKey implements NormalizedRecord.
func (d *DocketEntry) NaturalKey() string { return d.CaseNumber }

// Hearing is one scheduled hearing of a case.
type Hearing struct {
	PortalID   int64     `json:"portal_id"`
	CaseNumber string    `json:"case_number"`
	Type       string    `json:"type"`
	StartsAt   time.Time `json:"starts_at"`
	Courtroom  string    `json:"courtroom"`
	Status     string    `json:"status"`
}

// RecordKind implements NormalizedRecord.
func (h *Hearing) RecordKind() CaptureKind { return KindHearings }

// NaturalKey implements NormalizedRecord.
func (h *Hearing) NaturalKey() string {
	return fmt.Sprintf("%s|%d", h.CaseNumber, h.PortalID)
}

// PendingItem is a case awaiting a required response, inside or past its
// legal deadline.
type PendingItem struct {
	PortalID   int64      `json:"portal_id"`
	CaseNumber string     `json:"case_number"`
	NoticeType string     `json:"notice_type"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	DocumentID int64      `json:"document_id,omitempty"`
	NoticedAt  time.Time  `json:"noticed_at"`
}

// RecordKind implements NormalizedRecord.
func (p *PendingItem) RecordKind() CaptureKind { return KindPendingNotice }

// NaturalKey implements NormalizedRecord.
func (p *PendingItem) NaturalKey() string {
	return fmt.Sprintf("%s|%d", p.CaseNumber, p.PortalID)
}

// TimelineEvent is one procedural event (movement or document) of a case.
type TimelineEvent struct {
	PortalID     int64     `json:"portal_id"`
	CaseNumber   string    `json:"case_number"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	OccurredAt   time.Time `json:"occurred_at"`
	DocumentID   int64     `json:"document_id,omitempty"`
	DocumentType string    `json:"document_type,omitempty"`
	Signed       bool      `json:"signed"`
	Confidential bool      `json:"confidential"`
}

// RecordKind implements NormalizedRecord.
func (t *TimelineEvent) RecordKind() CaptureKind { return KindTimeline }

// NaturalKey implements NormalizedRecord.
func (t *TimelineEvent) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", t.CaseNumber, t.OccurredAt.UTC().Format(time.RFC3339), t.Title)
}

// ContentEqual reports whether two timeline events describe the same
// procedural event. Events captured independently per instance are
// considered duplicates when their content matches.
func (t *TimelineEvent) ContentEqual(other *TimelineEvent) bool {
	return t.CaseNumber == other.CaseNumber &&
		t.Title == other.Title &&
		t.OccurredAt.Equal(other.OccurredAt) &&
		t.DocumentID == other.DocumentID
}
