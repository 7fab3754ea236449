package alert

import "context"

// FailureNotice describes a send job that exhausted its retries.
type FailureNotice struct {
	TaskID      string
	Receiver    string
	Description string
}

// Notifier is the interface for alerting an operator about terminal
// job failures via an external provider.
type Notifier interface {
	NotifyFailure(ctx context.Context, n FailureNotice) error
}
