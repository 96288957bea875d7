package threads

import (
	"context"
	"fmt"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
)

const (
	categoryColor = "#0466c8"
	otherColor    = "#40E0D0"
)

// ListLabels returns the sidebar summary: the fixed system views, the
// configured categories and the catch-all Other bucket, each with its unread
// count for the owner's mailbox.
func (a *Aggregator) ListLabels(ctx context.Context, owner string) ([]*models.LabelSummary, error) {
	labels := []*models.LabelSummary{
		{ID: "all", Type: "system", Name: "inbox"},
		{ID: models.StatusTodo, Type: "system", Name: "To-Do List"},
		{ID: models.StatusDone, Type: "system", Name: "done"},
		{ID: "draft", Type: "system", Name: "draft"},
		{ID: "sent", Type: "system", Name: "sent"},
		{ID: "trash", Type: "system", Name: "trash"},
		{ID: "spam", Type: "system", Name: "spam"},
	}

	for _, label := range labels {
		switch label.ID {
		case "all":
			count, err := db.CountMessages(ctx, a.pool, &db.MessageFilter{
				DeliveredTo: owner,
				AllLabels:   []string{models.LabelUnread, models.LabelInbox},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to count inbox: %w", err)
			}
			label.UnreadCount = count
		case models.StatusTodo, models.StatusDone:
			count, err := db.CountThreadsWithStatus(ctx, a.pool, owner, label.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to count %s threads: %w", label.ID, err)
			}
			label.UnreadCount = count
		case "draft":
			count, err := db.CountMessages(ctx, a.pool, &db.MessageFilter{
				From:           owner,
				AllLabels:      []string{models.LabelDraft},
				NotLabels:      []string{models.LabelTrash},
				RequireDraftID: true,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to count drafts: %w", err)
			}
			label.UnreadCount = count
		}
	}

	for _, category := range a.categories {
		count, err := db.CountMessages(ctx, a.pool, &db.MessageFilter{
			DeliveredTo: owner,
			AllLabels:   []string{models.LabelUnread, models.LabelInbox},
			Category:    category,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count category %s: %w", category, err)
		}
		labels = append(labels, &models.LabelSummary{
			ID:          category,
			Type:        "system",
			Name:        category,
			UnreadCount: count,
			Color:       categoryColor,
		})
	}

	labels = append(labels, &models.LabelSummary{
		ID:    "Other",
		Type:  "system",
		Name:  "Other",
		Color: otherColor,
	})

	return labels, nil
}
