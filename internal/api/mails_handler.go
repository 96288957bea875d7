package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/loommail/backend/internal/compose"
	"github.com/loommail/backend/internal/mailbox"
	"github.com/loommail/backend/internal/models"
)

// ThreadMutator is the write-side surface the mutation endpoints depend on.
type ThreadMutator interface {
	SetLabels(ctx context.Context, session *mailbox.Session, messageID string, labels []string, add, detail bool) (*mailbox.LabelResult, error)
	MarkThreadRead(ctx context.Context, session *mailbox.Session, messageID string) (*mailbox.StatusResult, error)
	SetThreadCategory(ctx context.Context, session *mailbox.Session, threadID, category string) (*mailbox.StatusResult, error)
	SetThreadStatus(ctx context.Context, session *mailbox.Session, threadID, status string) (*mailbox.StatusResult, error)
	SetThreadCategoryAndStatus(ctx context.Context, session *mailbox.Session, threadID, category, status string, deletion bool) (*mailbox.StatusResult, error)
	DeleteThread(ctx context.Context, session *mailbox.Session, threadID string) (*mailbox.StatusResult, error)
	SendMail(ctx context.Context, session *mailbox.Session, req *compose.Request) (*mailbox.StatusResult, error)
}

// MailsHandler serves the label and thread-state mutation endpoints.
type MailsHandler struct {
	sessions SessionResolver
	mutator  ThreadMutator
}

// NewMailsHandler creates a new MailsHandler instance.
func NewMailsHandler(sessions SessionResolver, mutator ThreadMutator) *MailsHandler {
	return &MailsHandler{sessions: sessions, mutator: mutator}
}

// UpdateLabels handles PUT /api/v1/mails/labels.
func (h *MailsHandler) UpdateLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ID     string   `json:"id"`
		Labels []string `json:"labels"`
		Add    bool     `json:"add"`
		Detail bool     `json:"detail"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.ID == "" || len(req.Labels) == 0 {
		http.Error(w, "id and labels are required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.SetLabels(ctx, session, req.ID, req.Labels, req.Add, req.Detail)
	if err != nil {
		log.Printf("MailsHandler: Failed to update labels: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// MarkRead handles PUT /api/v1/mails/read.
func (h *MailsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.MarkThreadRead(ctx, session, req.ID)
	if err != nil {
		log.Printf("MailsHandler: Failed to mark thread read: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// UpdateCategory handles PUT /api/v1/threads/category.
func (h *MailsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ThreadID string `json:"threadId"`
		Category string `json:"category"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.ThreadID == "" || req.Category == "" {
		http.Error(w, "threadId and category are required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.SetThreadCategory(ctx, session, req.ThreadID, req.Category)
	if err != nil {
		log.Printf("MailsHandler: Failed to update category: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// UpdateStatus handles PUT /api/v1/threads/status.
func (h *MailsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ThreadID    string `json:"threadId"`
		StatusInput string `json:"statusInput"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.ThreadID == "" {
		http.Error(w, "threadId is required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.SetThreadStatus(ctx, session, req.ThreadID, req.StatusInput)
	if err != nil {
		log.Printf("MailsHandler: Failed to update status: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// UpdateCategoryAndStatus handles PUT /api/v1/threads/category-status.
func (h *MailsHandler) UpdateCategoryAndStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		ThreadID    string `json:"threadId"`
		Category    string `json:"category"`
		StatusInput string `json:"statusInput"`
		Deletion    bool   `json:"deletion"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if req.ThreadID == "" || req.Category == "" {
		http.Error(w, "threadId and category are required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.SetThreadCategoryAndStatus(ctx, session, req.ThreadID, req.Category, req.StatusInput, req.Deletion)
	if err != nil {
		log.Printf("MailsHandler: Failed to update category and status: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// DeleteThread handles DELETE /api/v1/threads/{thread_id}.
func (h *MailsHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	threadID := strings.TrimPrefix(r.URL.Path, "/api/v1/threads/")
	if threadID == "" || strings.Contains(threadID, "/") {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.DeleteThread(ctx, session, threadID)
	if err != nil {
		log.Printf("MailsHandler: Failed to delete thread: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}

// Send handles POST /api/v1/mails/send.
func (h *MailsHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := h.sessions.Resolve(ctx, w)
	if !ok {
		return
	}

	var req struct {
		To          []string            `json:"to"`
		CC          []string            `json:"cc"`
		BCC         []string            `json:"bcc"`
		Subject     string              `json:"subject"`
		HTML        string              `json:"html"`
		ThreadID    string              `json:"threadId"`
		InReplyTo   string              `json:"inReplyTo"`
		DraftID     string              `json:"draftId"`
		Attachments []models.Attachment `json:"attachments"`
	}
	if !DecodeJSONBody(w, r, &req) {
		return
	}
	if len(req.To) == 0 {
		http.Error(w, "at least one recipient is required", http.StatusBadRequest)
		return
	}

	result, err := h.mutator.SendMail(ctx, session, &compose.Request{
		To:          req.To,
		CC:          req.CC,
		BCC:         req.BCC,
		Subject:     req.Subject,
		HTML:        req.HTML,
		ThreadID:    req.ThreadID,
		InReplyTo:   req.InReplyTo,
		DraftID:     req.DraftID,
		Attachments: req.Attachments,
	})
	if err != nil {
		log.Printf("MailsHandler: Failed to send mail: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, result)
}
