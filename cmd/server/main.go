package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/api"
	"github.com/loommail/backend/internal/auth"
	"github.com/loommail/backend/internal/badges"
	"github.com/loommail/backend/internal/config"
	"github.com/loommail/backend/internal/crypto"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/mailbox"
	"github.com/loommail/backend/internal/provider"
	"github.com/loommail/backend/internal/realtime"
	"github.com/loommail/backend/internal/threads"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	server := NewServer(ctx, cfg, pool)

	address := ":" + cfg.Port
	log.Printf("Loommail backend server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the Loommail API
// server, starting the background watcher and refresher on the given context.
func NewServer(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool) http.Handler {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	gmail := provider.NewGmail(cfg.GoogleClientID, cfg.GoogleClientSecret)
	vault := auth.NewTokenVault(dbPool, encryptor)

	hub := realtime.NewHub(10)
	watcher := realtime.NewWatcher(dbPool, hub)
	go watcher.Run(ctx)

	refresher := mailbox.NewRefresher(dbPool, vault, gmail, gmail)
	go refresher.Run(ctx)

	aggregator := threads.NewAggregator(dbPool, refresher, cfg.Categories)

	messages, threadStore, interactions := mailbox.NewStores(dbPool)
	mutator := mailbox.NewMutator(messages, threadStore, interactions, gmail, badges.NewLadder(dbPool), hub)

	middleware := auth.NewMiddleware(gmail)
	middleware.UseVault(vault)

	sessions := api.NewSessionResolver(dbPool)
	threadsHandler := api.NewThreadsHandler(sessions, aggregator)
	mailsHandler := api.NewMailsHandler(sessions, mutator)
	searchHandler := api.NewSearchHandler(sessions, dbPool, cfg.Categories)
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

	// WebSocket handler handles its own authentication via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Serve))

	// Handle DELETE /api/v1/threads/{thread_id}. Everything else under the
	// prefix belongs to the fixed routes above.
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
	_, _ = fmt.Fprintf(w, "Loommail API is running")
}
