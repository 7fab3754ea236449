package msglog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lectiomsg/internal/adapters/storage"
	domain "lectiomsg/internal/domain/msglog"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("init db: %v", err)
	}
	return NewSQLiteStore(db)
}

func appendRecord(t *testing.T, s *SQLiteStore, sev domain.Severity, taskID, receiver, desc string) {
	t.Helper()
	r := domain.New(sev, taskID, receiver, desc)
	if err := s.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestAppendAndListByTaskID_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendRecord(t, s, domain.SeverityInfo, "task-1", "Jens", "first")
	appendRecord(t, s, domain.SeverityWarning, "task-1", "Jens", "second")
	appendRecord(t, s, domain.SeveritySuccess, "task-2", "Anna", "other job")
	appendRecord(t, s, domain.SeverityError, "task-1", "Jens", "third")

	records, err := s.ListByTaskID(ctx, "task-1")
	if err != nil {
		t.Fatalf("ListByTaskID: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Newest-first: insertion order reversed
	wantDesc := []string{"third", "second", "first"}
	for i, want := range wantDesc {
		if records[i].Description != want {
			t.Errorf("records[%d].Description = %q, want %q", i, records[i].Description, want)
		}
		if records[i].TaskID != "task-1" {
			t.Errorf("records[%d].TaskID = %q, want task-1", i, records[i].TaskID)
		}
	}
}

func TestListByReceiver_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendRecord(t, s, domain.SeverityInfo, "task-1", "Jens", "a")
	appendRecord(t, s, domain.SeverityInfo, "task-2", "Anna", "b")
	appendRecord(t, s, domain.SeveritySuccess, "task-3", "Jens", "c")

	records, err := s.ListByReceiver(ctx, "Jens")
	if err != nil {
		t.Fatalf("ListByReceiver: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Description != "c" || records[1].Description != "a" {
		t.Errorf("unexpected order: %q, %q", records[0].Description, records[1].Description)
	}
}

func TestListAll_RespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendRecord(t, s, domain.SeverityInfo, "task-1", "Jens", "entry")
	}

	records, err := s.ListAll(ctx, 3)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestAppend_RoundTripsTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := domain.New(domain.SeverityInfo, "task-1", "Jens", "queued")
	if err := s.Append(ctx, r); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.ListByTaskID(ctx, "task-1")
	if err != nil {
		t.Fatalf("ListByTaskID: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Timestamp.Sub(r.Timestamp) > time.Millisecond || r.Timestamp.Sub(records[0].Timestamp) > time.Millisecond {
		t.Errorf("timestamp round-trip drift: stored %v, got %v", r.Timestamp, records[0].Timestamp)
	}
	if records[0].ID == 0 {
		t.Error("store should assign an ID")
	}
}
