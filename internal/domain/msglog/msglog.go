package msglog

import (
	"errors"
	"time"
)

// Severity classifies a log record.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Domain errors.
var (
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrEmptyDescription = errors.New("description is required")
)

// Record is a single append-only log entry for a send job.
// Records are never updated or deleted; ordering is by insertion.
type Record struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    Severity  `json:"log_level"`
	TaskID      string    `json:"task_id"`
	Receiver    string    `json:"receiver"`
	Description string    `json:"description"`
}

// New creates a record with the current timestamp.
// PRE: severity is one of the Severity constants
// POST: Returns a Record ready to append (ID assigned by the store)
func New(severity Severity, taskID, receiver, description string) Record {
	return Record{
		Timestamp:   time.Now(),
		Severity:    severity,
		TaskID:      taskID,
		Receiver:    receiver,
		Description: description,
	}
}

// Validate checks that the Record has valid data.
// PRE: Record struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Record) Validate() error {
	switch r.Severity {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
	default:
		return ErrInvalidSeverity
	}
	if r.Description == "" {
		return ErrEmptyDescription
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}
