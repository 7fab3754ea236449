package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	alertPkg "lectiomsg/internal/adapters/alert"
	browserPkg "lectiomsg/internal/adapters/browser"
	web "lectiomsg/internal/adapters/http"
	"lectiomsg/internal/adapters/storage"
	logStorePkg "lectiomsg/internal/adapters/storage/msglog"
	taskStorePkg "lectiomsg/internal/adapters/storage/task"
	"lectiomsg/internal/application/orchestrators"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Optional .env for local development; real deployments set env vars directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Initialize database with WAL mode and busy timeout
	dbPath := envOrDefault("LECTIO_SENDER_DB", "lectiomsg.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	// Health check
	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}

	// Create schema
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	log.Println("Database initialized successfully!")

	// Create store instances
	stores := &web.Stores{
		LogStore:  logStorePkg.NewSQLiteStore(db),
		TaskStore: taskStorePkg.NewSQLiteStore(db),
	}

	// Configure failure alerting
	var notifier alertPkg.Notifier
	resendKey := os.Getenv("LECTIO_SENDER_RESEND_KEY")
	alertTo := os.Getenv("LECTIO_SENDER_ALERT_TO")
	alertFrom := envOrDefault("LECTIO_SENDER_ALERT_FROM", "Lectio Sender <noreply@localhost>")
	if resendKey != "" && alertTo != "" {
		notifier = alertPkg.NewResendNotifier(resendKey, alertFrom, alertTo)
		log.Println("Failure alerting configured (Resend)")
	} else {
		notifier = alertPkg.NewNoopNotifier()
		log.Println("Failure alerting configured (noop — set LECTIO_SENDER_RESEND_KEY and LECTIO_SENDER_ALERT_TO for email alerts)")
	}

	// Browser sessions: headless unless explicitly disabled for debugging
	headless := envOrDefault("LECTIO_SENDER_HEADLESS", "true") != "false"
	sessions := browserPkg.NewPlaywrightFactory(headless)

	// The runner executes one send flow per claimed task
	runner := func(ctx context.Context, input orchestrators.SendMessageInput) (int, error) {
		return orchestrators.ExecuteSendMessage(ctx, input, orchestrators.SendMessageDeps{
			Sessions: sessions,
			LogStore: stores.LogStore,
		})
	}

	// Start the background dispatcher that drains the task queue
	pollInterval := 5 * time.Second
	if v := os.Getenv("LECTIO_SENDER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			pollInterval = d
		}
	}
	dispatcher := orchestrators.NewDispatcher(stores.TaskStore, stores.LogStore, runner, notifier)
	stopCh := make(chan struct{})
	orchestrators.StartDispatcher(dispatcher, pollInterval, stopCh)
	defer close(stopCh)

	// Create HTTP handler with middleware
	mux := web.NewMux(stores, dispatcher.Wake)

	// Start server
	addr := envOrDefault("LECTIO_SENDER_ADDR", ":8010")
	log.Printf("Lectio sender %s starting on %s (db=%s, headless=%v)", version, addr, dbPath, headless)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
