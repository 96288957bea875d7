package api

import (
	"context"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/search"
)

const recentAddressLimit = 25

// dbAddresses adapts the message store to the suggester's address source.
type dbAddresses struct {
	pool *pgxpool.Pool
}

func (a *dbAddresses) RecentSenders(ctx context.Context, owner string) ([]string, error) {
	return db.ListRecentAddresses(ctx, a.pool, owner, "from_address", recentAddressLimit)
}

func (a *dbAddresses) RecentRecipients(ctx context.Context, owner string) ([]string, error) {
	return db.ListRecentAddresses(ctx, a.pool, owner, "to_address", recentAddressLimit)
}

// SearchHandler serves search-bar autocomplete.
type SearchHandler struct {
	sessions  SessionResolver
	suggester *search.Suggester
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(sessions SessionResolver, pool *pgxpool.Pool, categories []string) *SearchHandler {
	return &SearchHandler{
		sessions: sessions,
		suggester: &search.Suggester{
			Addresses:  &dbAddresses{pool: pool},
			Categories: categories,
		},
	}
}

// GetSuggestions handles GET /api/v1/search/suggestions?q=.
func (h *SearchHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	suggestions, err := h.suggester.Suggest(ctx, r.URL.Query().Get("q"), session.Identity.Email)
	if err != nil {
		log.Printf("SearchHandler: Failed to build suggestions: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if suggestions == nil {
		suggestions = []search.Suggestion{}
	}

	WriteJSONResponse(w, suggestions)
}
