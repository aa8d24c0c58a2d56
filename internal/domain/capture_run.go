package domain

import (
	"time"
)

// RunOutcome classifies a finished capture run.
type RunOutcome string

const (
	// OutcomeSuccess means every expected item was retrieved.
	OutcomeSuccess RunOutcome = "success"
	// OutcomePartial means the run finished cleanly but retrieved fewer
	// items than the totalizer reported. Partial runs feed gap analysis.
	OutcomePartial RunOutcome = "partial"
	// OutcomeFailure means the run aborted with a terminal error.
	OutcomeFailure RunOutcome = "failure"
)

// RunStatus is the lifecycle status of a capture run.
type RunStatus string

const (
	// StatusInProgress marks a run that has started and not yet finished.
	StatusInProgress RunStatus = "in_progress"
	// StatusDone marks a finished run; Outcome holds the classification.
	StatusDone RunStatus = "done"
)

// CaptureRun is one execution of a capture executor. Created at run start,
// finalized at run end, immutable afterwards. A later run for the same
// scope supersedes it; it is never merged with one.
type CaptureRun struct {
	ID           string      `db:"id" json:"id"`
	Kind         CaptureKind `db:"kind" json:"kind"`
	Jurisdiction string      `db:"jurisdiction" json:"jurisdiction"`
	Instance     Instance    `db:"instance" json:"instance"`
	AccountID    int64       `db:"account_id" json:"account_id"`
	Status       RunStatus   `db:"status" json:"status"`
	Outcome      RunOutcome  `db:"outcome" json:"outcome,omitempty"`

	// Totalizer is the item count the portal reported for the query.
	Totalizer int `db:"totalizer" json:"totalizer"`
	// Retrieved is the number of items actually captured.
	Retrieved int `db:"retrieved" json:"retrieved"`

	ErrorCode    string     `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Terminal reports whether the run has reached a terminal status.
func (r *CaptureRun) Terminal() bool {
	return r.Status == StatusDone
}

// RawLogStatus is the status of one raw log entry.
type RawLogStatus string

const (
	// RawLogSuccess marks an entry holding a successfully retrieved item.
	RawLogSuccess RawLogStatus = "success"
	// RawLogError marks an entry recording a terminal item failure.
	RawLogError RawLogStatus = "error"
)

// RawLogEntry is one appended record in the raw capture log: a retrieved
// item or a terminal item error. Entries are never updated or deleted.
type RawLogEntry struct {
	ID           int64        `db:"id" json:"id"`
	RunID        string       `db:"run_id" json:"run_id"`
	Kind         CaptureKind  `db:"kind" json:"kind"`
	Jurisdiction string       `db:"jurisdiction" json:"jurisdiction"`
	Instance     Instance     `db:"instance" json:"instance"`
	AccountID    int64        `db:"account_id" json:"account_id"`
	ContentHash  string       `db:"content_hash" json:"content_hash"`
	Payload      JSONBMap     `db:"payload" json:"payload,omitempty"`
	Status       RawLogStatus `db:"status" json:"status"`
	ErrorMessage string       `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// RawLogFilter narrows raw log queries and aggregations.
type RawLogFilter struct {
	RunID        string
	Kind         CaptureKind
	Status       RawLogStatus
	Jurisdiction string
	Instance     Instance
	AccountID    int64
	From         time.Time
	To           time.Time
}

// StatusCount is an aggregation bucket of raw log entries by status.
type StatusCount struct {
	Status RawLogStatus `db:"status" json:"status"`
	Count  int          `db:"count" json:"count"`
}

// JurisdictionStats is an aggregation bucket of raw log entries per
// jurisdiction and instance.
type JurisdictionStats struct {
	Jurisdiction string   `db:"jurisdiction" json:"jurisdiction"`
	Instance     Instance `db:"instance" json:"instance"`
	Successes    int      `db:"successes" json:"successes"`
	Errors       int      `db:"errors" json:"errors"`
}

// GapReport compares what a capture run expected against what the raw log
// actually holds for one (kind, jurisdiction, instance, day) bucket.
type GapReport struct {
	Kind         CaptureKind `json:"kind"`
	Jurisdiction string      `json:"jurisdiction"`
	Instance     Instance    `json:"instance"`
	Day          time.Time   `json:"day"`
	Expected     int         `json:"expected"`
	Retrieved    int         `json:"retrieved"`
	Gap          int         `json:"gap"`
}
