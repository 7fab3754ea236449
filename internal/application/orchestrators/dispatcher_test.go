package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lectiomsg/internal/adapters/alert"
	msglogDomain "lectiomsg/internal/domain/msglog"
	taskDomain "lectiomsg/internal/domain/task"
)

// --- In-memory task store ---

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]taskDomain.Task
	order []string
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]taskDomain.Task)}
}

func (m *memTaskStore) GetByID(_ context.Context, id string) (taskDomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return taskDomain.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memTaskStore) Save(_ context.Context, t taskDomain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; !exists {
		m.order = append(m.order, t.ID)
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *memTaskStore) ClaimPending(_ context.Context, limit int) ([]taskDomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []taskDomain.Task
	for _, id := range m.order {
		if len(claimed) >= limit {
			break
		}
		t := m.tasks[id]
		if t.Status != taskDomain.StatusPending {
			continue
		}
		if err := t.MarkRunning(time.Now()); err != nil {
			return nil, err
		}
		m.tasks[id] = t
		claimed = append(claimed, t)
	}
	return claimed, nil
}

func (m *memTaskStore) ListRecent(_ context.Context, limit int) ([]taskDomain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []taskDomain.Task
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.tasks[m.order[i]])
	}
	return out, nil
}

// --- Stub notifier ---

type stubNotifier struct {
	mu      sync.Mutex
	notices []alert.FailureNotice
}

func (s *stubNotifier) NotifyFailure(_ context.Context, n alert.FailureNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	return nil
}

// --- Enqueue ---

func enqueueDeps(tasks *memTaskStore, logs *memLogStore, wake func()) EnqueueSendDeps {
	return EnqueueSendDeps{
		TaskStore:  tasks,
		LogStore:   logs,
		GenerateID: func() string { return "task-1" },
		Now:        time.Now,
		Wake:       wake,
	}
}

func TestEnqueueSend_CreatesPendingTask(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}
	woken := false

	id, err := ExecuteEnqueueSend(context.Background(),
		EnqueueSendInput{Request: testRequest()},
		enqueueDeps(tasks, logs, func() { woken = true }))
	if err != nil {
		t.Fatalf("ExecuteEnqueueSend() = %v", err)
	}
	if id != "task-1" {
		t.Errorf("id = %q, want task-1", id)
	}

	tk, err := tasks.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("task not saved: %v", err)
	}
	if tk.Status != taskDomain.StatusPending {
		t.Errorf("status = %s, want pending", tk.Status)
	}
	if !strings.Contains(tk.Payload, `"send_to":"Jens Jensen"`) {
		t.Errorf("payload should carry the request: %q", tk.Payload)
	}
	if tk.Receiver != "Jens Jensen" {
		t.Errorf("receiver = %q", tk.Receiver)
	}
	if !woken {
		t.Error("dispatcher should be woken on enqueue")
	}
	if n := logs.countBySeverity(msglogDomain.SeverityInfo); n != 1 {
		t.Errorf("INFO records = %d, want 1", n)
	}
}

func TestEnqueueSend_RejectsInvalidRequest(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}

	req := testRequest()
	req.SendTo = ""
	_, err := ExecuteEnqueueSend(context.Background(),
		EnqueueSendInput{Request: req},
		enqueueDeps(tasks, logs, nil))
	if !errors.Is(err, taskDomain.ErrEmptyReceiver) {
		t.Errorf("err = %v, want ErrEmptyReceiver", err)
	}
	if len(tasks.order) != 0 {
		t.Error("no task should be saved for an invalid request")
	}
}

// --- Dispatcher ---

func enqueueTestTask(t *testing.T, tasks *memTaskStore, logs *memLogStore, id string) {
	t.Helper()
	deps := enqueueDeps(tasks, logs, nil)
	deps.GenerateID = func() string { return id }
	if _, err := ExecuteEnqueueSend(context.Background(), EnqueueSendInput{Request: testRequest()}, deps); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func TestDispatcher_RunsTaskToSuccess(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}
	notifier := &stubNotifier{}
	enqueueTestTask(t, tasks, logs, "task-1")

	var gotInput SendMessageInput
	runner := func(_ context.Context, input SendMessageInput) (int, error) {
		gotInput = input
		return 2, nil
	}

	d := NewDispatcher(tasks, logs, runner, notifier)
	if err := d.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	if gotInput.TaskID != "task-1" || gotInput.Request.SendTo != "Jens Jensen" {
		t.Errorf("runner input = %+v", gotInput)
	}

	tk, _ := tasks.GetByID(context.Background(), "task-1")
	if tk.Status != taskDomain.StatusSucceeded {
		t.Errorf("status = %s, want succeeded", tk.Status)
	}
	if tk.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", tk.Attempts)
	}
	if tk.Payload != "" {
		t.Error("payload should be scrubbed after the job finishes")
	}
	if len(notifier.notices) != 0 {
		t.Errorf("no alert expected on success, got %d", len(notifier.notices))
	}
}

func TestDispatcher_AlertsOnFailure(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}
	notifier := &stubNotifier{}
	enqueueTestTask(t, tasks, logs, "task-1")

	runner := func(_ context.Context, _ SendMessageInput) (int, error) {
		return 20, errors.New("send flow failed after 20 attempts")
	}

	d := NewDispatcher(tasks, logs, runner, notifier)
	if err := d.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	tk, _ := tasks.GetByID(context.Background(), "task-1")
	if tk.Status != taskDomain.StatusFailed {
		t.Errorf("status = %s, want failed", tk.Status)
	}
	if tk.ErrorMessage == "" {
		t.Error("ErrorMessage should be recorded")
	}
	if len(notifier.notices) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.notices))
	}
	if notifier.notices[0].TaskID != "task-1" || notifier.notices[0].Receiver != "Jens Jensen" {
		t.Errorf("notice = %+v", notifier.notices[0])
	}
}

func TestDispatcher_DrainsQueue(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}
	notifier := &stubNotifier{}
	for _, id := range []string{"t1", "t2", "t3"} {
		enqueueTestTask(t, tasks, logs, id)
	}

	var ran []string
	runner := func(_ context.Context, input SendMessageInput) (int, error) {
		ran = append(ran, input.TaskID)
		return 1, nil
	}

	d := NewDispatcher(tasks, logs, runner, notifier)
	d.batchSize = 2 // force multiple claim rounds
	if err := d.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	if len(ran) != 3 {
		t.Fatalf("ran %d tasks, want 3", len(ran))
	}
	for _, id := range []string{"t1", "t2", "t3"} {
		tk, _ := tasks.GetByID(context.Background(), id)
		if !tk.IsTerminal() {
			t.Errorf("task %s not terminal: %s", id, tk.Status)
		}
	}
}

func TestDispatcher_BadPayloadFailsTask(t *testing.T) {
	tasks := newMemTaskStore()
	logs := &memLogStore{}
	notifier := &stubNotifier{}

	tk := taskDomain.Task{ID: "t1", Status: taskDomain.StatusPending, Payload: "{not json", Receiver: "Jens", CreatedAt: time.Now()}
	if err := tasks.Save(context.Background(), tk); err != nil {
		t.Fatalf("save: %v", err)
	}

	runnerCalled := false
	runner := func(_ context.Context, _ SendMessageInput) (int, error) {
		runnerCalled = true
		return 0, nil
	}

	d := NewDispatcher(tasks, logs, runner, notifier)
	if err := d.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	if runnerCalled {
		t.Error("runner must not run with an undecodable payload")
	}
	got, _ := tasks.GetByID(context.Background(), "t1")
	if got.Status != taskDomain.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if n := logs.countBySeverity(msglogDomain.SeverityError); n != 1 {
		t.Errorf("ERROR records = %d, want 1", n)
	}
}

func TestDispatcher_WakeNeverBlocks(t *testing.T) {
	d := NewDispatcher(newMemTaskStore(), &memLogStore{}, func(_ context.Context, _ SendMessageInput) (int, error) { return 1, nil }, &stubNotifier{})
	// Repeated wakes with nobody draining the channel must not block.
	for i := 0; i < 10; i++ {
		d.Wake()
	}
}
