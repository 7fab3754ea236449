package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"lectiomsg/internal/adapters/alert"
	logStore "lectiomsg/internal/adapters/storage/msglog"
	taskStore "lectiomsg/internal/adapters/storage/task"
	msglogDomain "lectiomsg/internal/domain/msglog"
	taskDomain "lectiomsg/internal/domain/task"
)

// SendRunner executes one send flow for a claimed task. Production
// wiring points this at ExecuteSendMessage; tests substitute stubs.
type SendRunner func(ctx context.Context, input SendMessageInput) (int, error)

// Dispatcher claims pending send tasks and runs them to a terminal
// state. Jobs share nothing but the append-only log store, so they are
// processed sequentially; volume is low and each job monopolizes a
// browser anyway.
type Dispatcher struct {
	tasks     taskStore.Store
	logs      logStore.Store
	run       SendRunner
	notifier  alert.Notifier
	batchSize int
	now       func() time.Time
	wake      chan struct{}
}

// NewDispatcher creates a dispatcher; notifier may be a NoopNotifier
// but must not be nil.
func NewDispatcher(tasks taskStore.Store, logs logStore.Store, run SendRunner, notifier alert.Notifier) *Dispatcher {
	return &Dispatcher{
		tasks:     tasks,
		logs:      logs,
		run:       run,
		notifier:  notifier,
		batchSize: 10,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
}

// Wake nudges the dispatcher to poll immediately instead of waiting
// for the next tick. Never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// ProcessPending claims and runs pending tasks until the queue drains.
// PRE: Context is valid
// POST: Every claimed task is in a terminal state
func (d *Dispatcher) ProcessPending(ctx context.Context) error {
	for {
		claimed, err := d.tasks.ClaimPending(ctx, d.batchSize)
		if err != nil {
			return fmt.Errorf("claim pending tasks: %w", err)
		}
		if len(claimed) == 0 {
			return nil
		}
		for _, t := range claimed {
			d.runTask(ctx, t)
		}
	}
}

// runTask executes one claimed task and records its terminal outcome.
// Failures are scoped to the task: the dispatcher keeps serving.
func (d *Dispatcher) runTask(ctx context.Context, t taskDomain.Task) {
	var req taskDomain.SendRequest
	if err := json.Unmarshal([]byte(t.Payload), &req); err != nil {
		err = fmt.Errorf("decode task payload: %w", err)
		d.appendRecord(ctx, msglogDomain.New(msglogDomain.SeverityError, t.ID, t.Receiver, err.Error()))
		d.finishTask(ctx, t, 0, err)
		return
	}

	d.appendRecord(ctx, msglogDomain.New(msglogDomain.SeverityInfo, t.ID, req.SendTo,
		fmt.Sprintf("Starting to send Lectio message to %s", req.SendTo)))

	attempts, err := d.run(ctx, SendMessageInput{TaskID: t.ID, Request: req})
	d.finishTask(ctx, t, attempts, err)
}

// finishTask marks the task terminal and alerts the operator on failure.
func (d *Dispatcher) finishTask(ctx context.Context, t taskDomain.Task, attempts int, runErr error) {
	t.Attempts = attempts
	now := d.now()

	var markErr error
	if runErr == nil {
		markErr = t.MarkSucceeded(now)
	} else {
		markErr = t.MarkFailed(now, runErr)
	}
	if markErr != nil {
		slog.Error("task_transition_failed", "task_id", t.ID, "error", markErr)
		return
	}

	if err := d.tasks.Save(ctx, t); err != nil {
		slog.Error("task_save_failed", "task_id", t.ID, "error", err)
	}

	if runErr != nil {
		notice := alert.FailureNotice{TaskID: t.ID, Receiver: t.Receiver, Description: runErr.Error()}
		if err := d.notifier.NotifyFailure(ctx, notice); err != nil {
			slog.Error("failure_alert_failed", "task_id", t.ID, "error", err)
		}
	}
}

func (d *Dispatcher) appendRecord(ctx context.Context, rec msglogDomain.Record) {
	if err := d.logs.Append(ctx, rec); err != nil {
		slog.Error("log_append_failed", "task_id", rec.TaskID, "severity", rec.Severity, "error", err)
	}
}

// StartDispatcher runs the dispatcher on a ticker plus wake-ups until
// stopCh is closed.
// PRE: stopCh is provided to signal shutdown
// POST: Worker goroutine runs until stopCh is closed
func StartDispatcher(d *Dispatcher, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-d.wake:
			case <-stopCh:
				slog.Info("dispatcher_stopped")
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			if err := d.ProcessPending(ctx); err != nil {
				slog.Error("dispatcher_process_failed", "error", err)
			}
			cancel()
		}
	}()
}
