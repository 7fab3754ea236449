package web

import (
	"net/http"
	"time"

	"lectiomsg/internal/adapters/http/middleware"
	logStore "lectiomsg/internal/adapters/storage/msglog"
	taskStore "lectiomsg/internal/adapters/storage/task"
)

// Stores holds all storage dependencies.
type Stores struct {
	LogStore  logStore.Store
	TaskStore taskStore.Store
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global dispatcher wake hook (set by NewMux; may be nil in tests)
var wakeDispatcher func()

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, wake func()) http.Handler {
	stores = s
	wakeDispatcher = wake

	mux := http.NewServeMux()
	registerRoutes(mux)

	// Rate limiter: configurable requests per second per IP
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: RequestLog -> SecurityHeaders -> RateLimit -> Mux
	return middleware.Chain(mux,
		middleware.RateLimit(limiter),
		middleware.SecurityHeaders,
		middleware.RequestLog,
	)
}

// registerRoutes attaches all handlers to the mux.
func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", handleHealth)
	mux.HandleFunc("/send-message", handleSendMessage)
	mux.HandleFunc("/logs", handleLogs)
	mux.HandleFunc("/logs/by_task_id/", handleLogsByTaskID)
	mux.HandleFunc("/logs/by_receiver/", handleLogsByReceiver)
	mux.HandleFunc("/tasks", handleTasks)
	mux.HandleFunc("/tasks/", handleTaskByID)
}
