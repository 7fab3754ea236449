package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lectiomsg/internal/adapters/storage"
	domain "lectiomsg/internal/domain/task"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the task Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new send task store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a task by its ID.
// PRE: id is non-empty
// POST: Returns the task or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, payload, receiver, attempts, created_at, started_at, finished_at, error_message
		 FROM send_task WHERE id = ?`, id)
	if err != nil {
		return domain.Task{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Task{}, err
		}
		return domain.Task{}, sql.ErrNoRows
	}
	return scanTaskFromRows(rows)
}

// Save persists a task to the database.
// PRE: task has been validated
// POST: Task is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, t domain.Task) error {
	startedAt := ""
	if !t.StartedAt.IsZero() {
		startedAt = t.StartedAt.Format(dateLayout)
	}
	finishedAt := ""
	if !t.FinishedAt.IsZero() {
		finishedAt = t.FinishedAt.Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO send_task (id, status, payload, receiver, attempts, created_at, started_at, finished_at, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, payload=excluded.payload, receiver=excluded.receiver,
		   attempts=excluded.attempts, started_at=excluded.started_at,
		   finished_at=excluded.finished_at, error_message=excluded.error_message`,
		t.ID, t.Status, t.Payload, t.Receiver, t.Attempts,
		t.CreatedAt.Format(dateLayout), startedAt, finishedAt, t.ErrorMessage)
	return err
}

// ClaimPending atomically marks up to limit pending tasks as running
// and returns them, oldest-first.
// PRE: limit > 0
// POST: Returned tasks are in running status in the store
func (s *SQLiteStore) ClaimPending(ctx context.Context, limit int) ([]domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, status, payload, receiver, attempts, created_at, started_at, finished_at, error_message
		 FROM send_task WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		domain.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	tasks, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range tasks {
		if err := tasks[i].MarkRunning(now); err != nil {
			return nil, fmt.Errorf("claim task %s: %w", tasks[i].ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE send_task SET status = ?, started_at = ? WHERE id = ?`,
			tasks[i].Status, tasks[i].StartedAt.Format(dateLayout), tasks[i].ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListRecent returns the most recently created tasks, newest-first.
// PRE: limit > 0
// POST: Returns up to limit tasks ordered newest-first
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, payload, receiver, attempts, created_at, started_at, finished_at, error_message
		 FROM send_task ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// scanTaskFromRows scans a single row from Rows into a Task.
func scanTaskFromRows(rows *sql.Rows) (domain.Task, error) {
	var t domain.Task
	var createdAt string
	var startedAt, finishedAt sql.NullString
	err := rows.Scan(&t.ID, &t.Status, &t.Payload, &t.Receiver, &t.Attempts,
		&createdAt, &startedAt, &finishedAt, &t.ErrorMessage)
	if err != nil {
		return domain.Task{}, err
	}
	t.CreatedAt, _ = time.Parse(dateLayout, createdAt)
	if startedAt.Valid && startedAt.String != "" {
		t.StartedAt, _ = time.Parse(dateLayout, startedAt.String)
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t.FinishedAt, _ = time.Parse(dateLayout, finishedAt.String)
	}
	return t, nil
}

// scanTasks scans multiple rows into a slice of Tasks.
func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTaskFromRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
