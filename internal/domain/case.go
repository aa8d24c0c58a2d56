package domain

import (
	"time"
)

// CaseOrigin records how a case entered the store.
type CaseOrigin string

const (
	// OriginCapture marks cases created by a capture run.
	OriginCapture CaseOrigin = "captura"
	// OriginExternalNotice marks stub cases created from an unmatched
	// external notice.
	OriginExternalNotice CaseOrigin = "comunica_cnj"
)

// UnifiedCase merges the per-instance records of one real-world lawsuit
// (matched by case number) into a single logical entity. The persistence
// synchronizer recomputes the merge; callers never author it directly.
type UnifiedCase struct {
	ID         int64      `db:"id" json:"id"`
	CaseNumber string     `db:"case_number" json:"case_number"`
	AccountID  int64      `db:"account_id" json:"account_id"`
	Origin     CaseOrigin `db:"origin" json:"origin"`

	// CurrentInstance is the highest-ranked non-archived instance present.
	CurrentInstance Instance  `db:"current_instance" json:"current_instance"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	Instances []*CaseInstance `db:"-" json:"instances,omitempty"`
}

// CaseInstance is the per-instance sub-record of a unified case.
type CaseInstance struct {
	ID           int64     `db:"id" json:"id"`
	CaseID       int64     `db:"case_id" json:"case_id"`
	PortalID     int64     `db:"portal_id" json:"portal_id"`
	Jurisdiction string    `db:"jurisdiction" json:"jurisdiction"`
	Instance     Instance  `db:"instance" json:"instance"`
	Class        string    `db:"class" json:"class"`
	Subject      string    `db:"subject" json:"subject"`
	Claimant     string    `db:"claimant" json:"claimant"`
	Defendant    string    `db:"defendant" json:"defendant"`
	Archived     bool      `db:"archived" json:"archived"`
	FiledAt      time.Time `db:"filed_at" json:"filed_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Communication is one notice retrieved from the national notice feed.
// Communications are deduplicated by content hash and either linked to an
// existing case or back a newly created stub case.
type Communication struct {
	ID           int64     `db:"id" json:"id"`
	ContentHash  string    `db:"content_hash" json:"content_hash"`
	CaseNumber   string    `db:"case_number" json:"case_number"`
	Jurisdiction string    `db:"jurisdiction" json:"jurisdiction"`
	Instance     Instance  `db:"instance" json:"instance"`
	AccountID    int64     `db:"account_id" json:"account_id"`
	CaseID       *int64    `db:"case_id" json:"case_id,omitempty"`
	NoticeText   string    `db:"notice_text" json:"notice_text"`
	NoticedAt    time.Time `db:"noticed_at" json:"noticed_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
