package api

import (
	"context"
	"log"
	"net/http"

	"github.com/loommail/backend/internal/models"
)

// ThreadLister is the read-side surface the listing endpoints depend on.
type ThreadLister interface {
	ListThreads(ctx context.Context, owner, folder, searchWords string, searching bool) ([]*models.ThreadView, error)
	ListImportantThreads(ctx context.Context, owner, folder, searchWords string, searching bool) ([]*models.ThreadView, error)
	ListLabels(ctx context.Context, owner string) ([]*models.LabelSummary, error)
}

// ThreadsHandler serves the thread listing and label summary endpoints.
type ThreadsHandler struct {
	sessions SessionResolver
	lister   ThreadLister
}

// NewThreadsHandler creates a new ThreadsHandler instance.
func NewThreadsHandler(sessions SessionResolver, lister ThreadLister) *ThreadsHandler {
	return &ThreadsHandler{sessions: sessions, lister: lister}
}

func listingParams(r *http.Request) (folder, searchWords string, searching bool) {
	query := r.URL.Query()
	folder = query.Get("labelId")
	if folder == "" {
		folder = "all"
	}
	searchWords = query.Get("searchWords")
	searching = query.Get("searching") == "true" && searchWords != ""
	return folder, searchWords, searching
}

// GetThreads returns the owner's conversations for a folder or search.
func (h *ThreadsHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	folder, searchWords, searching := listingParams(r)

	views, err := h.lister.ListThreads(ctx, session.Identity.Email, folder, searchWords, searching)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to list threads: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []*models.ThreadView{}
	}

	WriteJSONResponse(w, views)
}

// GetImportantThreads returns the conversations of the important view.
func (h *ThreadsHandler) GetImportantThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	folder, searchWords, searching := listingParams(r)

	views, err := h.lister.ListImportantThreads(ctx, session.Identity.Email, folder, searchWords, searching)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to list important threads: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []*models.ThreadView{}
	}

	WriteJSONResponse(w, views)
}

// GetLabels returns the sidebar label summary with unread counts.
func (h *ThreadsHandler) GetLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	labels, err := h.lister.ListLabels(ctx, session.Identity.Email)
	if err != nil {
		log.Printf("ThreadsHandler: Failed to list labels: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, labels)
}
