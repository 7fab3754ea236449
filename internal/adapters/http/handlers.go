package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lectiomsg/internal/application/orchestrators"
	msglogDomain "lectiomsg/internal/domain/msglog"
	taskDomain "lectiomsg/internal/domain/task"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth reports liveness on the root path.
// Route: GET /
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": timeNow().UTC().Format(time.RFC3339),
	})
}

// handleSendMessage accepts a send request and enqueues a background job.
// The caller only gets the task id; success or failure of the actual
// send is observable through the log endpoints.
// Route: POST /send-message
func handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Replies are allowed unless the caller explicitly disables them.
	req := taskDomain.SendRequest{CanBeReplied: true}
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	deps := orchestrators.EnqueueSendDeps{
		TaskStore:  stores.TaskStore,
		LogStore:   stores.LogStore,
		GenerateID: generateID,
		Now:        timeNow,
		Wake:       wakeDispatcher,
	}
	taskID, err := orchestrators.ExecuteEnqueueSend(r.Context(), orchestrators.EnqueueSendInput{Request: req}, deps)
	if err != nil {
		switch err {
		case taskDomain.ErrEmptySchoolID, taskDomain.ErrEmptyUser, taskDomain.ErrEmptyPassword, taskDomain.ErrEmptyReceiver:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			internalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "Task submitted",
	})
}

// logsPageTemplate renders all records as a Bootstrap-styled table.
var logsPageTemplate = template.Must(template.New("logs").
	Funcs(template.FuncMap{"badgeClass": badgeClass}).
	Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Lectio Message Logs</title>
  <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css" rel="stylesheet">
</head>
<body class="p-4">
  <div class="container">
    <h2 class="mb-4">Lectio Message Logs</h2>
    <table class="table table-striped table-bordered table-hover">
      <thead class="table-dark">
        <tr><th>timestamp</th><th>log_level</th><th>task_id</th><th>receiver</th><th>description</th></tr>
      </thead>
      <tbody>
        {{range .}}
        <tr>
          <td>{{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}</td>
          <td><span class="badge {{.Severity | badgeClass}}">{{.Severity}}</span></td>
          <td>{{.TaskID}}</td>
          <td>{{.Receiver}}</td>
          <td>{{.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  </div>
</body>
</html>
`))

// badgeClass maps a severity onto a Bootstrap badge color.
func badgeClass(s msglogDomain.Severity) string {
	switch s {
	case msglogDomain.SeveritySuccess:
		return "bg-success"
	case msglogDomain.SeverityWarning:
		return "bg-warning text-dark"
	case msglogDomain.SeverityError:
		return "bg-danger"
	default:
		return "bg-secondary"
	}
}

// handleLogs lists all records, newest-first, as an HTML table or JSON.
// Route: GET /logs
func handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 500
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 5000 {
			limit = n
		}
	}

	records, err := stores.LogStore.ListAll(r.Context(), limit)
	if err != nil {
		internalError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" ||
		strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, records)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := logsPageTemplate.Execute(w, records); err != nil {
		slog.Error("logs_page_render_failed", "error", err.Error())
	}
}

// handleLogsByTaskID returns records for one job, newest-first.
// Route: GET /logs/by_task_id/{id}
func handleLogsByTaskID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract task ID from path: /logs/by_task_id/:id
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	taskID := parts[2]

	records, err := stores.LogStore.ListByTaskID(r.Context(), taskID)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// taskView is the wire shape for task status. The stored payload holds
// portal credentials and is never exposed.
type taskView struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	Receiver     string     `json:"receiver"`
	Attempts     int        `json:"attempts"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func toTaskView(t taskDomain.Task) taskView {
	v := taskView{
		ID:        t.ID,
		Status:    t.Status,
		Receiver:  t.Receiver,
		Attempts:  t.Attempts,
		CreatedAt: t.CreatedAt,
	}
	if !t.StartedAt.IsZero() {
		started := t.StartedAt
		v.StartedAt = &started
	}
	if !t.FinishedAt.IsZero() {
		finished := t.FinishedAt
		v.FinishedAt = &finished
	}
	v.ErrorMessage = t.ErrorMessage
	return v
}

// handleTasks gives a queue overview: per-status counts plus the most
// recent tasks, newest-first.
// Route: GET /tasks
func handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	tasks, err := stores.TaskStore.ListRecent(r.Context(), limit)
	if err != nil {
		internalError(w, err)
		return
	}

	counts := map[string]int{}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		counts[t.Status]++
		views = append(views, toTaskView(t))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
		"tasks":  views,
	})
}

// handleTaskByID returns the status of one queued job.
// Route: GET /tasks/{id}
func handleTaskByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[1] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	taskID := parts[1]

	t, err := stores.TaskStore.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskView(t))
}

// handleLogsByReceiver returns records for one recipient, newest-first.
// Route: GET /logs/by_receiver/{receiver}
func handleLogsByReceiver(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] == "" {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	receiver := parts[2]

	records, err := stores.LogStore.ListByReceiver(r.Context(), receiver)
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
