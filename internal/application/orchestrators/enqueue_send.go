package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	logStore "lectiomsg/internal/adapters/storage/msglog"
	taskStore "lectiomsg/internal/adapters/storage/task"
	msglogDomain "lectiomsg/internal/domain/msglog"
	taskDomain "lectiomsg/internal/domain/task"
)

// EnqueueSendInput carries one validated send request into the queue.
type EnqueueSendInput struct {
	Request taskDomain.SendRequest
}

// EnqueueSendDeps holds dependencies for EnqueueSend.
type EnqueueSendDeps struct {
	TaskStore  taskStore.Store
	LogStore   logStore.Store
	GenerateID func() string
	Now        func() time.Time
	Wake       func() // pokes the dispatcher; may be nil
}

// ExecuteEnqueueSend validates the request, persists a pending task and
// returns its identifier. The HTTP caller only ever sees this ID; the
// flow outcome is observable through the log endpoints.
// PRE: Deps are wired; GenerateID and Now are non-nil
// POST: A pending task exists and an INFO record marks the enqueue
func ExecuteEnqueueSend(ctx context.Context, input EnqueueSendInput, deps EnqueueSendDeps) (string, error) {
	if err := input.Request.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(input.Request)
	if err != nil {
		return "", fmt.Errorf("encode send request: %w", err)
	}

	t := taskDomain.Task{
		ID:        deps.GenerateID(),
		Status:    taskDomain.StatusPending,
		Payload:   string(payload),
		Receiver:  input.Request.SendTo,
		CreatedAt: deps.Now(),
	}
	if err := deps.TaskStore.Save(ctx, t); err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}

	rec := msglogDomain.New(msglogDomain.SeverityInfo, t.ID, t.Receiver,
		fmt.Sprintf("Queued Lectio message to %s", t.Receiver))
	if err := deps.LogStore.Append(ctx, rec); err != nil {
		slog.Error("enqueue_log_append_failed", "task_id", t.ID, "error", err)
	}

	if deps.Wake != nil {
		deps.Wake()
	}

	slog.Info("send_task_enqueued", "task_id", t.ID, "receiver", t.Receiver)
	return t.ID, nil
}
