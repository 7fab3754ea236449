package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lectiomsg/internal/adapters/browser"
	"lectiomsg/internal/adapters/lectio"
	logStore "lectiomsg/internal/adapters/storage/msglog"
	msglogDomain "lectiomsg/internal/domain/msglog"
	taskDomain "lectiomsg/internal/domain/task"
)

// DefaultMaxFlowAttempts is the ceiling for full-flow retries.
const DefaultMaxFlowAttempts = 20

// DefaultFlowRetryDelay is the fixed cooldown between flow attempts.
// Fixed delays, not exponential backoff: request volume is low and a
// failed attempt already cost a full browser launch.
const DefaultFlowRetryDelay = 3 * time.Second

// SendMessageInput identifies the job and carries the portal request.
type SendMessageInput struct {
	TaskID  string
	Request taskDomain.SendRequest
}

// SendMessageDeps holds dependencies for SendMessage.
type SendMessageDeps struct {
	Sessions browser.Factory
	LogStore logStore.Store

	// Portal is the timing template for the Lectio client; credentials
	// are filled in from the request. The zero value takes the client's
	// own defaults.
	Portal lectio.Config

	MaxFlowAttempts int                 // default DefaultMaxFlowAttempts
	FlowRetryDelay  time.Duration       // default DefaultFlowRetryDelay
	Sleep           func(time.Duration) // default time.Sleep
}

// ExecuteSendMessage runs the full login → navigate → compose → send
// flow with bounded retries. The whole flow is re-run from a fresh
// browser session on any transient failure; the session is torn down
// after every attempt so no state leaks between attempts.
//
// Exactly one terminal record is appended per invocation: SUCCESS when
// a flow attempt completes, ERROR when the ceiling is exhausted or a
// permanent failure (unknown recipient) is hit. Each intermediate
// failed attempt appends one WARNING noting the attempt number.
//
// PRE: input.Request has been validated
// POST: Terminal log record appended; returns nil only on success
func ExecuteSendMessage(ctx context.Context, input SendMessageInput, deps SendMessageDeps) (int, error) {
	maxAttempts := deps.MaxFlowAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFlowAttempts
	}
	retryDelay := deps.FlowRetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultFlowRetryDelay
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	req := input.Request
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := runFlowAttempt(ctx, req, deps)
		if err == nil {
			appendRecord(ctx, deps.LogStore, msglogDomain.New(
				msglogDomain.SeveritySuccess, input.TaskID, req.SendTo,
				fmt.Sprintf("Successfully sent message to %s", req.SendTo)))
			slog.Info("send_flow_succeeded", "task_id", input.TaskID, "receiver", req.SendTo, "attempt", attempt)
			return attempt, nil
		}

		if lectio.IsPermanent(err) {
			appendRecord(ctx, deps.LogStore, msglogDomain.New(
				msglogDomain.SeverityError, input.TaskID, req.SendTo, err.Error()))
			slog.Error("send_flow_permanent_failure", "task_id", input.TaskID, "receiver", req.SendTo, "attempt", attempt, "error", err)
			return attempt, err
		}

		if attempt == maxAttempts {
			appendRecord(ctx, deps.LogStore, msglogDomain.New(
				msglogDomain.SeverityError, input.TaskID, req.SendTo,
				fmt.Sprintf("Failed entire send flow after %d attempts. Last error: %v", maxAttempts, err)))
			slog.Error("send_flow_exhausted", "task_id", input.TaskID, "receiver", req.SendTo, "attempts", maxAttempts, "error", err)
			return attempt, fmt.Errorf("send flow failed after %d attempts: %w", maxAttempts, err)
		}

		appendRecord(ctx, deps.LogStore, msglogDomain.New(
			msglogDomain.SeverityWarning, input.TaskID, req.SendTo,
			fmt.Sprintf("Flow attempt %d/%d failed with error: %v. Will retry from scratch.", attempt, maxAttempts, err)))
		slog.Warn("send_flow_attempt_failed", "task_id", input.TaskID, "receiver", req.SendTo, "attempt", attempt, "error", err)
		sleep(retryDelay)
	}

	// Unreachable: the loop always returns on the final attempt.
	return maxAttempts, fmt.Errorf("send flow failed after %d attempts", maxAttempts)
}

// runFlowAttempt opens one browser session, runs the flow once and
// always releases the session before returning.
func runFlowAttempt(ctx context.Context, req taskDomain.SendRequest, deps SendMessageDeps) error {
	page, err := deps.Sessions.Open(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			slog.Warn("browser_session_close_failed", "error", cerr)
		}
	}()

	cfg := deps.Portal
	cfg.SchoolID = req.SchoolID
	cfg.User = req.User
	cfg.Password = req.Password

	client := lectio.NewClient(page, cfg)
	if err := client.Login(); err != nil {
		return err
	}
	if err := client.OpenCompose(); err != nil {
		return err
	}
	return client.SendMessage(req.SendTo, req.Subject, req.Body, req.CanBeReplied)
}

// appendRecord appends a log record; append failures are diagnosed via
// slog but never abort the flow.
func appendRecord(ctx context.Context, store logStore.Store, rec msglogDomain.Record) {
	if err := store.Append(ctx, rec); err != nil {
		slog.Error("log_append_failed", "task_id", rec.TaskID, "severity", rec.Severity, "error", err)
	}
}
