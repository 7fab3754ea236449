package alert

import (
	"context"
	"log/slog"
)

// NoopNotifier logs failure notices without delivering anything.
// Used when no alert provider is configured.
type NoopNotifier struct{}

// NewNoopNotifier creates a new NoopNotifier.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// NotifyFailure logs the notice but does not deliver it.
// PRE: n is a populated FailureNotice
// POST: Notice is logged, nothing is sent
func (s *NoopNotifier) NotifyFailure(_ context.Context, n FailureNotice) error {
	slog.Info("noop_alert", "task_id", n.TaskID, "receiver", n.Receiver, "description", n.Description)
	return nil
}
