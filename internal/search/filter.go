package search

import (
	"strings"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
)

// ForFolder returns the pushed-down message filter for a plain folder view
// (no search active). Unknown folder names are treated as category names over
// the inbox, which is how client-defined categories become folders.
func ForFolder(folder, owner string) *db.MessageFilter {
	filter := &db.MessageFilter{}

	switch folder {
	case "all":
		filter.AnyLabels = []string{models.LabelInbox}
		filter.DeliveredTo = owner
	case "sent":
		filter.AnyLabels = []string{models.LabelSent}
		filter.From = owner
	case "draft":
		filter.AnyLabels = []string{models.LabelDraft}
		filter.RequireDraftID = true
		filter.From = owner
	case "trash":
		filter.AnyLabels = []string{models.LabelTrash}
		filter.DeliveredTo = owner
	case "spam":
		filter.AnyLabels = []string{models.LabelSpam}
		filter.DeliveredTo = owner
	case models.StatusTodo, models.StatusDone:
		filter.AnyLabels = []string{models.LabelInbox}
		filter.DeliveredTo = owner
	default:
		filter.AnyLabels = []string{models.LabelInbox}
		filter.DeliveredTo = owner
		filter.Category = folder
	}

	if folder != "trash" {
		filter.NotLabels = []string{models.LabelTrash}
	}

	return filter
}

// ToFilter translates a parsed search query into a message filter plus the
// workflow status the thread join must gate on. The returned status is empty
// unless an "is:todo" or "is:done" term appeared; an empty status gates the
// view to threads without one.
//
// Later terms win over earlier ones. Unknown "is:" values turn into a label
// match that hits nothing, so a malformed query returns empty results instead
// of an error.
func (q *Query) ToFilter(owner string) (*db.MessageFilter, string) {
	status := ""
	filter := &db.MessageFilter{
		DeliveredTo: owner,
		AnyLabels:   []string{models.LabelInbox},
	}

	for _, term := range q.Terms {
		value := strings.TrimSpace(term.Value)

		switch term.Key {
		case "is":
			if value == models.StatusTodo || value == models.StatusDone {
				status = value
				continue
			}
			label := strings.ToUpper(value)
			filter.AnyLabels = []string{label}
			filter.NotLabels = []string{models.LabelTrash}
			// Sent and draft views are owned by the sender, not the
			// recipient.
			if label == models.LabelSent || label == models.LabelDraft {
				filter.From = owner
				filter.DeliveredTo = ""
				if label == models.LabelDraft {
					filter.RequireDraftID = true
				}
			}
		case "from":
			filter.From = value
		case "subject":
			filter.Subject = value
		case "filename":
			filter.Filename = value
		case "to", "receiver":
			// A recipient search must also cover mail the owner sent, so the
			// mailbox scope widens from delivered-to to either side.
			filter.DeliveredTo = ""
			filter.OwnerAddress = owner
			filter.To = value
		case "category":
			filter.Category = value
		case KeyText:
			filter.Text = value
		}
	}

	return filter, status
}
