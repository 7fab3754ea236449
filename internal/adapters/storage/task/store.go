package task

import (
	"context"

	domain "lectiomsg/internal/domain/task"
)

// Store defines the interface for send task persistence.
type Store interface {
	// GetByID retrieves a task by its ID.
	// PRE: id is non-empty
	// POST: Returns the task or an error if not found
	GetByID(ctx context.Context, id string) (domain.Task, error)

	// Save persists a task to the database.
	// PRE: task has been validated
	// POST: Task is persisted (insert or update)
	Save(ctx context.Context, t domain.Task) error

	// ClaimPending atomically marks up to limit pending tasks as running
	// and returns them, oldest-first.
	// PRE: limit > 0
	// POST: Returned tasks are in running status in the store
	ClaimPending(ctx context.Context, limit int) ([]domain.Task, error)

	// ListRecent returns the most recently created tasks, newest-first.
	// PRE: limit > 0
	// POST: Returns up to limit tasks ordered newest-first
	ListRecent(ctx context.Context, limit int) ([]domain.Task, error)
}
