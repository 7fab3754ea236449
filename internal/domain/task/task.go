package task

import (
	"errors"
	"time"
)

// Status constants for the send task lifecycle.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Domain errors.
var (
	ErrEmptySchoolID = errors.New("lectio school id is required")
	ErrEmptyUser     = errors.New("lectio user is required")
	ErrEmptyPassword = errors.New("lectio password is required")
	ErrEmptyReceiver = errors.New("send_to is required")
	ErrNotPending    = errors.New("task is not pending")
	ErrNotRunning    = errors.New("task is not running")
)

// SendRequest carries one message send through the queue. It is
// transient: only its outcome is persisted structurally, and the
// serialized payload is scrubbed once the task reaches a terminal
// state so portal credentials do not outlive the job.
type SendRequest struct {
	SchoolID     string `json:"lectio_school_id"`
	User         string `json:"lectio_user"`
	Password     string `json:"lectio_password"`
	SendTo       string `json:"send_to"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	CanBeReplied bool   `json:"can_be_replied"`
}

// Validate checks that the request carries everything the portal flow needs.
// PRE: SendRequest struct is populated from the API
// POST: Returns nil if valid, domain error otherwise
func (r *SendRequest) Validate() error {
	if r.SchoolID == "" {
		return ErrEmptySchoolID
	}
	if r.User == "" {
		return ErrEmptyUser
	}
	if r.Password == "" {
		return ErrEmptyPassword
	}
	if r.SendTo == "" {
		return ErrEmptyReceiver
	}
	return nil
}

// Task is one background execution of the send flow.
type Task struct {
	ID           string
	Status       string
	Payload      string // JSON-encoded SendRequest; cleared on terminal states
	Receiver     string
	Attempts     int
	CreatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorMessage string
}

// IsTerminal returns true once the task has a final outcome.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

// MarkRunning transitions a pending task to running.
// PRE: Status is pending
// POST: Status is running, StartedAt set
func (t *Task) MarkRunning(now time.Time) error {
	if t.Status != StatusPending {
		return ErrNotPending
	}
	t.Status = StatusRunning
	t.StartedAt = now
	return nil
}

// MarkSucceeded transitions a running task to succeeded.
// PRE: Status is running
// POST: Status is succeeded, FinishedAt set, payload scrubbed
func (t *Task) MarkSucceeded(now time.Time) error {
	if t.Status != StatusRunning {
		return ErrNotRunning
	}
	t.Status = StatusSucceeded
	t.FinishedAt = now
	t.Payload = ""
	return nil
}

// MarkFailed transitions a running task to failed.
// PRE: Status is running
// POST: Status is failed, FinishedAt and ErrorMessage set, payload scrubbed
func (t *Task) MarkFailed(now time.Time, err error) error {
	if t.Status != StatusRunning {
		return ErrNotRunning
	}
	t.Status = StatusFailed
	t.FinishedAt = now
	if err != nil {
		t.ErrorMessage = err.Error()
	}
	t.Payload = ""
	return nil
}
