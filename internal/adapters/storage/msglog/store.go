package msglog

import (
	"context"

	domain "lectiomsg/internal/domain/msglog"
)

// Store defines the interface for append-only log record persistence.
type Store interface {
	// Append persists a new log record.
	// PRE: record has been validated
	// POST: Record is inserted; the store never mutates existing records
	Append(ctx context.Context, r domain.Record) error

	// ListAll returns records across all jobs, newest-first.
	// PRE: limit > 0
	// POST: Returns up to limit records ordered newest-first
	ListAll(ctx context.Context, limit int) ([]domain.Record, error)

	// ListByTaskID returns records for one job, newest-first.
	// PRE: taskID is non-empty
	// POST: Returns only records whose task_id matches
	ListByTaskID(ctx context.Context, taskID string) ([]domain.Record, error)

	// ListByReceiver returns records for one recipient, newest-first.
	// PRE: receiver is non-empty
	// POST: Returns only records whose receiver matches
	ListByReceiver(ctx context.Context, receiver string) ([]domain.Record, error)
}
