package msglog

import (
	"context"
	"database/sql"
	"time"

	"lectiomsg/internal/adapters/storage"
	domain "lectiomsg/internal/domain/msglog"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements the msglog Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new log record store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append persists a new log record.
// PRE: record has been validated
// POST: Record is inserted; IDs are assigned in insertion order
func (s *SQLiteStore) Append(ctx context.Context, r domain.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO msg_log (timestamp, log_level, task_id, receiver, description)
		 VALUES (?, ?, ?, ?, ?)`,
		r.Timestamp.Format(dateLayout), string(r.Severity), r.TaskID, r.Receiver, r.Description)
	return err
}

// ListAll returns records across all jobs, newest-first.
// PRE: limit > 0
// POST: Returns up to limit records ordered newest-first
func (s *SQLiteStore) ListAll(ctx context.Context, limit int) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, log_level, task_id, receiver, description
		 FROM msg_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByTaskID returns records for one job, newest-first.
// PRE: taskID is non-empty
// POST: Returns only records whose task_id matches
func (s *SQLiteStore) ListByTaskID(ctx context.Context, taskID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, log_level, task_id, receiver, description
		 FROM msg_log WHERE task_id = ? ORDER BY id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByReceiver returns records for one recipient, newest-first.
// PRE: receiver is non-empty
// POST: Returns only records whose receiver matches
func (s *SQLiteStore) ListByReceiver(ctx context.Context, receiver string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, log_level, task_id, receiver, description
		 FROM msg_log WHERE receiver = ? ORDER BY id DESC`, receiver)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// scanRecordFromRows scans a single row from Rows into a Record.
func scanRecordFromRows(rows *sql.Rows) (domain.Record, error) {
	var r domain.Record
	var timestamp, severity string
	err := rows.Scan(&r.ID, &timestamp, &severity, &r.TaskID, &r.Receiver, &r.Description)
	if err != nil {
		return domain.Record{}, err
	}
	r.Severity = domain.Severity(severity)
	r.Timestamp, _ = time.Parse(dateLayout, timestamp)
	return r, nil
}

// scanRecords scans multiple rows into a slice of Records.
func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		r, err := scanRecordFromRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
