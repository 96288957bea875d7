// Command test-server runs a self-contained Loommail backend for local
// development and E2E runs: a disposable Postgres container, a seeded demo
// mailbox, and a stubbed mail provider so no Google credentials are needed.
// Authenticate with "Bearer dev-token" (or ?token=dev-token on the socket).
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loommail/backend/internal/api"
	"github.com/loommail/backend/internal/auth"
	"github.com/loommail/backend/internal/badges"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/mailbox"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/realtime"
	"github.com/loommail/backend/internal/testutil"
	"github.com/loommail/backend/internal/threads"
)

const (
	devToken   = "dev-token"
	devSubject = "dev-subject"
	devEmail   = "test@example.com"
)

var devCategories = []string{"Personal", "Work-Related", "Transactional", "Travel"}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, connStr, err := startPostgres(ctx)
	if err != nil {
		log.Fatalf("Failed to start Postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("Failed to terminate Postgres container: %v", err)
		}
	}()

	pool, err := setupDatabase(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}
	defer pool.Close()

	if err := seedMailbox(ctx, pool); err != nil {
		log.Fatalf("Failed to seed mailbox: %v", err)
	}

	if err := startHTTPServer(ctx, pool); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// startPostgres starts a test Postgres database using testcontainers.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	log.Println("Starting test Postgres database...")
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loommail_test"),
		postgres.WithUsername("loommail"),
		postgres.WithPassword("loommail"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start Postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get connection string: %w", err)
	}

	log.Println("Test Postgres database started")
	return container, connStr, nil
}

// setupDatabase creates a database connection pool and runs migrations.
func setupDatabase(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := testutil.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Successfully connected to database and ran migrations")
	return pool, nil
}

// seedMailbox creates the demo user and a handful of conversations.
func seedMailbox(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := db.GetOrCreateUser(ctx, pool, devSubject, devEmail); err != nil {
		return fmt.Errorf("failed to create demo user: %w", err)
	}

	now := time.Now().UTC()
	messages := []*models.Message{
		{
			MessageID:   "seed-1",
			ThreadID:    "thread-welcome",
			DeliveredTo: devEmail,
			From:        "onboarding@loommail.dev",
			To:          devEmail,
			Subject:     "Welcome to Loommail",
			Snippet:     "Your mailbox is ready.",
			Text:        "Your mailbox is ready. Try marking this thread as done.",
			Date:        now.Add(-2 * time.Hour),
			LabelIDs:    []string{models.LabelInbox, models.LabelUnread},
			Category:    "Transactional",
		},
		{
			MessageID:   "seed-2",
			ThreadID:    "thread-meeting",
			DeliveredTo: devEmail,
			From:        "colleague@example.com",
			To:          devEmail,
			Subject:     "Meeting Tomorrow",
			Snippet:     "Don't forget about the meeting tomorrow at 2 PM.",
			Date:        now.Add(-1 * time.Hour),
			LabelIDs:    []string{models.LabelInbox, models.LabelUnread, models.LabelImportant},
			Category:    "Work-Related",
		},
		{
			MessageID:   "seed-3",
			ThreadID:    "thread-meeting",
			DeliveredTo: devEmail,
			From:        devEmail,
			To:          "colleague@example.com",
			Subject:     "Re: Meeting Tomorrow",
			Snippet:     "See you there.",
			Date:        now.Add(-30 * time.Minute),
			LabelIDs:    []string{models.LabelSent},
			Category:    "Work-Related",
		},
		{
			MessageID:   "seed-4",
			ThreadID:    "thread-itinerary",
			DeliveredTo: devEmail,
			From:        "bookings@airline.example",
			To:          devEmail,
			Subject:     "Your itinerary for Lisbon",
			Snippet:     "Flight LX-1042, departing 09:40.",
			Date:        now.Add(-15 * time.Minute),
			LabelIDs:    []string{models.LabelInbox, models.LabelUnread},
			Category:    "Travel",
			Attachments: []models.Attachment{{Filename: "itinerary.pdf", MimeType: "application/pdf"}},
		},
	}
	for _, message := range messages {
		if err := db.SaveMessage(ctx, pool, message); err != nil {
			return fmt.Errorf("failed to seed message %s: %w", message.MessageID, err)
		}
	}

	log.Printf("Seeded %d messages for %s", len(messages), devEmail)
	return nil
}

// startHTTPServer starts the HTTP server and waits for shutdown signals.
func startHTTPServer(ctx context.Context, pool *pgxpool.Pool) error {
	server := NewServer(ctx, pool)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	address := ":" + port

	log.Printf("Loommail test server starting on %s", address)
	log.Printf("Authenticate with: Authorization: Bearer %s", devToken)
	log.Println("Server ready for E2E tests. Press Ctrl+C to stop.")

	serverErr := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(address, server); err != nil {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		return nil
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
}

// NewServer wires the API against the stub provider: the real aggregator,
// mutator and realtime hub over the seeded mirror, with provider calls
// answered locally.
func NewServer(ctx context.Context, pool *pgxpool.Pool) http.Handler {
	hub := realtime.NewHub(10)
	watcher := realtime.NewWatcher(pool, hub)
	go watcher.Run(ctx)

	aggregator := threads.NewAggregator(pool, nil, devCategories)

	messages, threadStore, interactions := mailbox.NewStores(pool)
	mutator := mailbox.NewMutator(messages, threadStore, interactions, &stubGateway{}, badges.NewLadder(pool), hub)

	middleware := auth.NewMiddleware(&stubAuthenticator{})

	sessions := api.NewSessionResolver(pool)
	threadsHandler := api.NewThreadsHandler(sessions, aggregator)
	mailsHandler := api.NewMailsHandler(sessions, mutator)
	searchHandler := api.NewSearchHandler(sessions, pool, devCategories)
	wsHandler := api.NewWSHandler(middleware, hub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/threads", middleware.RequireAuth(http.HandlerFunc(threadsHandler.GetThreads)))
	mux.Handle("/api/v1/threads/important", middleware.RequireAuth(http.HandlerFunc(threadsHandler.GetImportantThreads)))
	mux.Handle("/api/v1/labels", middleware.RequireAuth(http.HandlerFunc(threadsHandler.GetLabels)))
	mux.Handle("/api/v1/search/suggestions", middleware.RequireAuth(http.HandlerFunc(searchHandler.GetSuggestions)))
	mux.Handle("/api/v1/mails/read", middleware.RequireAuth(http.HandlerFunc(mailsHandler.MarkRead)))
	mux.Handle("/api/v1/mails/labels", middleware.RequireAuth(http.HandlerFunc(mailsHandler.UpdateLabels)))
	mux.Handle("/api/v1/mails/send", middleware.RequireAuth(http.HandlerFunc(mailsHandler.Send)))
	mux.Handle("/api/v1/threads/category", middleware.RequireAuth(http.HandlerFunc(mailsHandler.UpdateCategory)))
	mux.Handle("/api/v1/threads/status", middleware.RequireAuth(http.HandlerFunc(mailsHandler.UpdateStatus)))
	mux.Handle("/api/v1/threads/category-status", middleware.RequireAuth(http.HandlerFunc(mailsHandler.UpdateCategoryAndStatus)))
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Serve))

	deleteThread := middleware.RequireAuth(http.HandlerFunc(mailsHandler.DeleteThread))
	mux.Handle("/api/v1/threads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.TrimPrefix(r.URL.Path, "/api/v1/threads/") == "" {
			http.Error(w, "thread_id is required", http.StatusBadRequest)
			return
		}
		deleteThread.ServeHTTP(w, r)
	}))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Loommail Test Server is running")
}

// stubAuthenticator accepts the fixed dev token for the demo identity.
type stubAuthenticator struct{}

func (s *stubAuthenticator) Introspect(_ context.Context, accessToken string) (*models.Identity, error) {
	if accessToken != devToken {
		return nil, errors.New("invalid token")
	}
	return &models.Identity{Subject: devSubject, Email: devEmail}, nil
}

func (s *stubAuthenticator) RefreshAccessToken(context.Context, string) (string, error) {
	return devToken, nil
}

// stubGateway confirms every provider mutation locally, so the mirror is the
// only state the dev server has.
type stubGateway struct{}

func (s *stubGateway) ModifyLabels(_ context.Context, _, _ string, add, _ []string) ([]string, error) {
	return add, nil
}

func (s *stubGateway) TrashThread(context.Context, string, string) error {
	return nil
}

func (s *stubGateway) SendMessage(_ context.Context, _, _, threadID string) (string, string, error) {
	messageID := fmt.Sprintf("dev-%d", time.Now().UnixNano())
	if threadID == "" {
		threadID = "thread-" + messageID
	}
	return messageID, threadID, nil
}

func (s *stubGateway) DeleteDraft(context.Context, string, string) error {
	return nil
}
