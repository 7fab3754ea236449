package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLDB is the database interface used by all stores.
// *sql.DB satisfies this interface; tests may substitute wrappers.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// msg_log is append-only: no UPDATE or DELETE is ever issued against it.
	schema := `
	CREATE TABLE IF NOT EXISTS msg_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		log_level TEXT NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		receiver TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_msg_log_task_id ON msg_log(task_id);
	CREATE INDEX IF NOT EXISTS idx_msg_log_receiver ON msg_log(receiver);

	CREATE TABLE IF NOT EXISTS send_task (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		receiver TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_send_task_status ON send_task(status);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
