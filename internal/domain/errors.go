package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-checkable classification of a capture failure.
type ErrorCode string

const (
	// CodeCredentialNotFound — no active credential matches the requested
	// scope. Terminal, not retried automatically.
	CodeCredentialNotFound ErrorCode = "credential_not_found"
	// CodeAuthError — the portal rejected the credential. Terminal for
	// the run.
	CodeAuthError ErrorCode = "auth_error"
	// CodeTotalizerExceeded — retrieved count exceeds the reported total.
	// Terminal; treated as a correctness signal, never papered over.
	CodeTotalizerExceeded ErrorCode = "totalizer_exceeded"
	// CodePartialCapture — retrieved count fell short of the total with
	// no lower-level error. Not terminal; the run succeeds as partial.
	CodePartialCapture ErrorCode = "partial_capture"
	// CodeAttachmentDownload — one document download failed. Isolated to
	// the document, never fails the run.
	CodeAttachmentDownload ErrorCode = "attachment_download_error"
	// CodePersistenceConflict — an upsert collided on a natural key race.
	CodePersistenceConflict ErrorCode = "persistence_conflict"
	// CodeScheduleValidation — a malformed schedule definition was
	// rejected at write time.
	CodeScheduleValidation ErrorCode = "schedule_validation_error"
	// CodeTimeout — the caller-supplied run timeout elapsed.
	CodeTimeout ErrorCode = "timeout"
)

// CaptureError is a structured error carrying a machine-checkable code and
// a human-readable message.
type CaptureError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *CaptureError) Unwrap() error { return e.Err }

// NewCaptureError creates a CaptureError with the given code and message.
func NewCaptureError(code ErrorCode, message string, err error) *CaptureError {
	return &CaptureError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code from err, or an empty code when err does
// not carry one.
func CodeOf(err error) ErrorCode {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Common sentinel errors.
var (
	// ErrCredentialNotFound is returned when no active credential matches
	// an (account, jurisdiction, instance) triple.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrScheduleRunning is returned when a mutation targets a schedule
	// with a capture currently in flight.
	ErrScheduleRunning = errors.New("schedule has a capture in flight")
)
