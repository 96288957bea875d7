// Package threads builds the conversation view: messages matched by a folder
// or search filter are joined to their thread records, gated on workflow
// status, filtered by effective category, then grouped and sorted into
// ThreadViews.
package threads

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/search"
)

// FreshnessNotifier is poked after every listing so an external collaborator
// can pull the latest provider mail. It must never block the read path.
type FreshnessNotifier interface {
	NotifyMailboxRead(owner string)
}

// Aggregator serves thread listings over the local mirror.
type Aggregator struct {
	pool       *pgxpool.Pool
	notifier   FreshnessNotifier
	categories []string
}

// NewAggregator creates an aggregator. notifier may be nil; categories is the
// mailbox's configured category list used for the label summary.
func NewAggregator(pool *pgxpool.Pool, notifier FreshnessNotifier, categories []string) *Aggregator {
	return &Aggregator{pool: pool, notifier: notifier, categories: categories}
}

// ListThreads returns the owner's conversations for a folder, or for a search
// query when searching is set. The listing is read-only; the only side effect
// is the fire-and-forget freshness poke.
func (a *Aggregator) ListThreads(ctx context.Context, owner, folder, searchWords string, searching bool) ([]*models.ThreadView, error) {
	if a.notifier != nil {
		go a.notifier.NotifyMailboxRead(owner)
	}

	var filter *db.MessageFilter
	var statusGate string
	if searching {
		filter, statusGate = search.Parse(searchWords).ToFilter(owner)
	} else {
		filter = search.ForFolder(folder, owner)
	}
	// An explicit status term in the search wins; otherwise the todo/done
	// folders gate on themselves and every other view shows untriaged only.
	if statusGate == "" && (folder == models.StatusTodo || folder == models.StatusDone) {
		statusGate = folder
	}

	// Threads with a sent reply still belong in every inbox view.
	if folder != "draft" {
		filter.AnyLabels = append(filter.AnyLabels, models.LabelSent)
	}

	// The category constraint applies to the thread's effective category, not
	// the per-message column, so it is lifted out of the pushed-down filter.
	category := filter.Category
	filter.Category = ""

	messages, err := db.ListMessages(ctx, a.pool, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	records, err := db.GetThreadsByThreadIDs(ctx, a.pool, threadIDs(messages))
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	views := Group(messages, records)
	views = GateStatus(views, statusGate)
	views = FilterCategory(views, category)
	SortByFreshness(views)

	return views, nil
}

// ListImportantThreads is the same pipeline restricted to messages labeled
// IMPORTANT, with no workflow-status gate: triaged conversations stay visible
// in the important view.
func (a *Aggregator) ListImportantThreads(ctx context.Context, owner, folder, searchWords string, searching bool) ([]*models.ThreadView, error) {
	var filter *db.MessageFilter
	if searching {
		filter, _ = search.Parse(searchWords).ToFilter(owner)
	} else {
		filter = search.ForFolder(folder, owner)
	}

	if folder != "draft" {
		filter.AnyLabels = append(filter.AnyLabels, models.LabelSent)
	}
	filter.AllLabels = append(filter.AllLabels, models.LabelImportant)

	category := filter.Category
	filter.Category = ""

	messages, err := db.ListMessages(ctx, a.pool, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list important threads: %w", err)
	}

	records, err := db.GetThreadsByThreadIDs(ctx, a.pool, threadIDs(messages))
	if err != nil {
		return nil, fmt.Errorf("failed to list important threads: %w", err)
	}

	views := Group(messages, records)
	views = FilterCategory(views, category)
	SortByFreshness(views)

	return views, nil
}

func threadIDs(messages []*models.Message) []string {
	seen := make(map[string]struct{}, len(messages))
	var ids []string
	for _, msg := range messages {
		if _, ok := seen[msg.ThreadID]; ok {
			continue
		}
		seen[msg.ThreadID] = struct{}{}
		ids = append(ids, msg.ThreadID)
	}
	return ids
}

// Group buckets messages by thread ID, in first-seen order, and merges in the
// thread record fields. A missing record leaves them empty (left join).
func Group(messages []*models.Message, records map[string]*models.Thread) []*models.ThreadView {
	byThread := make(map[string]*models.ThreadView)
	var views []*models.ThreadView

	for _, msg := range messages {
		view, ok := byThread[msg.ThreadID]
		if !ok {
			view = &models.ThreadView{ThreadID: msg.ThreadID}
			if record, exists := records[msg.ThreadID]; exists {
				view.Summary = record.Summary
				view.Category = record.Category
				view.UserCategory = record.UserCategory
				view.GeneratedCategory = record.GeneratedCategory
				view.StatusInput = record.StatusInput
			}
			byThread[msg.ThreadID] = view
			views = append(views, view)
		}

		view.Emails = append(view.Emails, summarize(msg))

		if msg.HasLabel(models.LabelInbox) {
			date := msg.Date
			if view.LastInboxEmailDate == nil || date.After(*view.LastInboxEmailDate) {
				view.LastInboxEmailDate = &date
			}
		}
	}

	return views
}

func summarize(msg *models.Message) models.EmailSummary {
	return models.EmailSummary{
		MessageID:         msg.MessageID,
		Snippet:           msg.Snippet,
		To:                msg.To,
		From:              msg.From,
		Subject:           msg.Subject,
		LabelIDs:          msg.LabelIDs,
		Category:          msg.Category,
		UserCategory:      msg.UserCategory,
		GeneratedCategory: msg.GeneratedCategory,
		Date:              msg.Date,
		DraftID:           msg.DraftID,
		Attachments:       msg.Attachments,
		AttachmentCount:   len(msg.Attachments),
	}
}

// GateStatus keeps only views whose workflow status equals the gate. The
// default gate is the empty string, which excludes every triaged thread from
// the plain inbox views.
func GateStatus(views []*models.ThreadView, status string) []*models.ThreadView {
	kept := views[:0]
	for _, view := range views {
		if view.StatusInput == status {
			kept = append(kept, view)
		}
	}
	return kept
}

// FilterCategory keeps only views whose effective category matches. An empty
// category keeps everything.
func FilterCategory(views []*models.ThreadView, category string) []*models.ThreadView {
	if category == "" {
		return views
	}

	kept := views[:0]
	for _, view := range views {
		record := models.Thread{
			Category:          view.Category,
			UserCategory:      view.UserCategory,
			GeneratedCategory: view.GeneratedCategory,
		}
		if strings.EqualFold(record.EffectiveCategory(), category) {
			kept = append(kept, view)
		}
	}
	return kept
}

// SortByFreshness orders views newest first by last inbox mail date, falling
// back to the date of the thread's last message. The sort is stable, so equal
// dates keep the grouping step's first-seen order.
func SortByFreshness(views []*models.ThreadView) {
	sort.SliceStable(views, func(i, j int) bool {
		return freshness(views[j]).Before(freshness(views[i]))
	})
}

func freshness(view *models.ThreadView) time.Time {
	if view.LastInboxEmailDate != nil {
		return *view.LastInboxEmailDate
	}
	if len(view.Emails) > 0 {
		return view.Emails[len(view.Emails)-1].Date
	}
	return time.Time{}
}
