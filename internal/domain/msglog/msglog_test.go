package msglog

import (
	"testing"
	"time"
)

func TestNew_PopulatesFields(t *testing.T) {
	r := New(SeverityInfo, "task-1", "Jens Jensen", "queued")

	if r.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", r.Severity, SeverityInfo)
	}
	if r.TaskID != "task-1" {
		t.Errorf("TaskID = %q, want task-1", r.TaskID)
	}
	if r.Receiver != "Jens Jensen" {
		t.Errorf("Receiver = %q, want Jens Jensen", r.Receiver)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RejectsUnknownSeverity(t *testing.T) {
	r := New("DEBUG", "task-1", "x", "text")
	if err := r.Validate(); err != ErrInvalidSeverity {
		t.Errorf("Validate() = %v, want ErrInvalidSeverity", err)
	}
}

func TestValidate_RejectsEmptyDescription(t *testing.T) {
	r := New(SeverityError, "task-1", "x", "")
	if err := r.Validate(); err != ErrEmptyDescription {
		t.Errorf("Validate() = %v, want ErrEmptyDescription", err)
	}
}

func TestValidate_RejectsZeroTimestamp(t *testing.T) {
	r := Record{Severity: SeverityInfo, Description: "text"}
	if err := r.Validate(); err == nil {
		t.Error("Validate() should reject zero timestamp")
	}
	r.Timestamp = time.Now()
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_AcceptsAllSeverities(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError} {
		r := New(sev, "task-1", "x", "text")
		if err := r.Validate(); err != nil {
			t.Errorf("Validate() for %q = %v, want nil", sev, err)
		}
	}
}
