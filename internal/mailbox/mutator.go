// Package mailbox is the label/state mutator: every write goes to the
// external provider first, and only after the provider confirms is the local
// mirror updated. Each successful write emits a realtime event to the owning
// user's room.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/loommail/backend/internal/badges"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/provider"
	"github.com/loommail/backend/internal/realtime"
	"github.com/loommail/backend/internal/threads"
)

// Soft result statuses. Unknown IDs are routine client races (a thread
// already deleted on another device), so they come back as a status string
// rather than an error.
const (
	StatusOK       = "ok"
	StatusNotFound = "not found"
	StatusNoUnread = "no unread emails found in the thread"
)

// Session identifies the caller of a mutation: the provider credential the
// write is performed with, plus the resolved identity and local user ID.
type Session struct {
	AccessToken string
	Identity    models.Identity
	UserID      string
}

// Emitter delivers realtime events to a user's room.
type Emitter interface {
	Emit(subject string, event realtime.Event)
}

// LabelResult is the outcome of a label mutation.
type LabelResult struct {
	Status          string             `json:"status"`
	AppliedLabelIDs []string           `json:"appliedLabelIds,omitempty"`
	ThreadSnapshot  *models.ThreadView `json:"threadSnapshot,omitempty"`
}

// StatusResult is the outcome of a category/status/delete mutation.
type StatusResult struct {
	Status       string               `json:"status"`
	ThreadID     string               `json:"threadId,omitempty"`
	UnlockEvents []models.UnlockEvent `json:"unlockEvents,omitempty"`
}

// Mutator applies label and thread-state changes.
type Mutator struct {
	messages     MessageStore
	threads      ThreadStore
	interactions InteractionStore
	gateway      provider.Gateway
	unlocker     badges.Unlocker
	emitter      Emitter
}

// NewMutator wires the mutator's collaborators.
func NewMutator(messages MessageStore, threadStore ThreadStore, interactions InteractionStore, gateway provider.Gateway, unlocker badges.Unlocker, emitter Emitter) *Mutator {
	return &Mutator{
		messages:     messages,
		threads:      threadStore,
		interactions: interactions,
		gateway:      gateway,
		unlocker:     unlocker,
		emitter:      emitter,
	}
}

// SetLabels adds or removes labels on one message. The provider write happens
// first; a provider failure leaves the mirror untouched. detail selects the
// mail_detail_update event for clients with the message open.
//
// Toggling IMPORTANT relocates the thread between the normal and important
// views, so it emits a remove-from-one plus add-to-other pair instead of a
// plain update.
func (m *Mutator) SetLabels(ctx context.Context, session *Session, messageID string, labels []string, add, detail bool) (*LabelResult, error) {
	msg, err := m.messages.GetMessageByID(ctx, messageID)
	if errors.Is(err, db.ErrMessageNotFound) {
		return &LabelResult{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	var addLabels, removeLabels []string
	if add {
		addLabels = labels
	} else {
		removeLabels = labels
	}
	if _, err := m.gateway.ModifyLabels(ctx, session.AccessToken, messageID, addLabels, removeLabels); err != nil {
		return nil, fmt.Errorf("provider rejected label change: %w", err)
	}

	var applied []string
	if add {
		applied, err = m.messages.AddMessageLabels(ctx, messageID, labels)
	} else {
		applied, err = m.messages.RemoveMessageLabels(ctx, messageID, labels)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mirror label change: %w", err)
	}

	snapshot, err := m.threadSnapshot(ctx, msg.ThreadID, session.Identity.Email)
	if err != nil {
		return nil, err
	}

	m.emitLabelChange(session, msg.ThreadID, messageID, labels, applied, add, detail, snapshot)

	return &LabelResult{
		Status:          StatusOK,
		AppliedLabelIDs: applied,
		ThreadSnapshot:  snapshot,
	}, nil
}

func (m *Mutator) emitLabelChange(session *Session, threadID, messageID string, labels, applied []string, add, detail bool, snapshot *models.ThreadView) {
	subject := session.Identity.Subject

	if slices.Contains(labels, models.LabelImportant) {
		if add {
			m.emitter.Emit(subject, realtime.NewThreadRemoved(threadID, false))
			m.emitter.Emit(subject, realtime.NewThreadAdded(snapshot, true))
		} else {
			m.emitter.Emit(subject, realtime.NewThreadRemoved(threadID, true))
			m.emitter.Emit(subject, realtime.NewThreadAdded(snapshot, false))
		}
		return
	}

	if detail {
		m.emitter.Emit(subject, realtime.NewMailDetailUpdate(messageID, applied))
		return
	}
	m.emitter.Emit(subject, realtime.NewMailUpdate(messageID, applied))
}

// MarkThreadRead removes UNREAD from every unread message of the thread the
// given message belongs to, provider first, one message at a time.
func (m *Mutator) MarkThreadRead(ctx context.Context, session *Session, messageID string) (*StatusResult, error) {
	msg, err := m.messages.GetMessageByID(ctx, messageID)
	if errors.Is(err, db.ErrMessageNotFound) {
		return &StatusResult{Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	unread, err := m.messages.GetUnreadThreadMessages(ctx, msg.ThreadID, session.Identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	if len(unread) == 0 {
		return &StatusResult{Status: StatusNoUnread, ThreadID: msg.ThreadID}, nil
	}

	for _, unreadMsg := range unread {
		if _, err := m.gateway.ModifyLabels(ctx, session.AccessToken, unreadMsg.MessageID, nil, []string{models.LabelUnread}); err != nil {
			return nil, fmt.Errorf("provider rejected read change: %w", err)
		}
		applied, err := m.messages.RemoveMessageLabels(ctx, unreadMsg.MessageID, []string{models.LabelUnread})
		if err != nil {
			return nil, fmt.Errorf("failed to mirror read change: %w", err)
		}
		m.emitter.Emit(session.Identity.Subject, realtime.NewMailUpdate(unreadMsg.MessageID, applied))
	}

	return &StatusResult{Status: StatusOK, ThreadID: msg.ThreadID}, nil
}

// SetThreadCategory applies a user category override, creating the thread
// record when this is the first mutation to touch the conversation.
func (m *Mutator) SetThreadCategory(ctx context.Context, session *Session, threadID, category string) (*StatusResult, error) {
	if _, err := m.threads.GetOrCreateThread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}
	if err := m.threads.SetThreadUserCategory(ctx, threadID, category); err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			return &StatusResult{Status: StatusNotFound, ThreadID: threadID}, nil
		}
		return nil, fmt.Errorf("failed to set category: %w", err)
	}

	m.emitter.Emit(session.Identity.Subject, realtime.NewThreadUpdate(threadID, category))

	return &StatusResult{Status: StatusOK, ThreadID: threadID}, nil
}

// SetThreadStatus sets the workflow status. The first transition to "done"
// for a thread records the interaction and evaluates gamification unlocks,
// at most once per thread no matter how often done is re-applied.
func (m *Mutator) SetThreadStatus(ctx context.Context, session *Session, threadID, status string) (*StatusResult, error) {
	if _, err := m.threads.GetOrCreateThread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}
	if err := m.threads.SetThreadStatus(ctx, threadID, status); err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			return &StatusResult{Status: StatusNotFound, ThreadID: threadID}, nil
		}
		return nil, fmt.Errorf("failed to set status: %w", err)
	}

	result := &StatusResult{Status: StatusOK, ThreadID: threadID}

	if status != "" {
		// A triaged thread leaves the default inbox view.
		m.emitter.Emit(session.Identity.Subject, realtime.NewThreadRemoved(threadID, false))
	}

	if status == models.StatusDone {
		unlocks, err := m.recordCompletion(ctx, session, threadID)
		if err != nil {
			return nil, err
		}
		result.UnlockEvents = unlocks
	}

	return result, nil
}

// SetThreadCategoryAndStatus applies both mutations together, with the same
// interaction gate as SetThreadStatus. deletion signals that the thread left
// the caller's current view, so the removal event fires only on request.
func (m *Mutator) SetThreadCategoryAndStatus(ctx context.Context, session *Session, threadID, category, status string, deletion bool) (*StatusResult, error) {
	if _, err := m.threads.GetOrCreateThread(ctx, threadID); err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}
	if err := m.threads.SetThreadCategoryAndStatus(ctx, threadID, category, status); err != nil {
		if errors.Is(err, db.ErrThreadNotFound) {
			return &StatusResult{Status: StatusNotFound, ThreadID: threadID}, nil
		}
		return nil, fmt.Errorf("failed to set category and status: %w", err)
	}

	result := &StatusResult{Status: StatusOK, ThreadID: threadID}

	m.emitter.Emit(session.Identity.Subject, realtime.NewThreadUpdate(threadID, category))
	if deletion {
		m.emitter.Emit(session.Identity.Subject, realtime.NewThreadRemoved(threadID, false))
	}

	if status == models.StatusDone {
		unlocks, err := m.recordCompletion(ctx, session, threadID)
		if err != nil {
			return nil, err
		}
		result.UnlockEvents = unlocks
	}

	return result, nil
}

func (m *Mutator) recordCompletion(ctx context.Context, session *Session, threadID string) ([]models.UnlockEvent, error) {
	recorded, err := m.interactions.RecordInteraction(ctx, threadID, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to record interaction: %w", err)
	}
	if !recorded {
		return nil, nil
	}

	unlocks, err := m.unlocker.OnThreadCompleted(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate unlocks: %w", err)
	}
	return unlocks, nil
}

// DeleteThread trashes the conversation at the provider, then flips every
// mirrored message's label set to TRASH. Nothing is hard-deleted locally.
func (m *Mutator) DeleteThread(ctx context.Context, session *Session, threadID string) (*StatusResult, error) {
	if err := m.gateway.TrashThread(ctx, session.AccessToken, threadID); err != nil {
		return nil, fmt.Errorf("provider rejected thread deletion: %w", err)
	}

	trashed, err := m.messages.TrashThread(ctx, threadID, session.Identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to mirror thread deletion: %w", err)
	}
	if trashed == 0 {
		return &StatusResult{Status: StatusNotFound, ThreadID: threadID}, nil
	}

	m.emitter.Emit(session.Identity.Subject, realtime.NewThreadRemoved(threadID, false))
	m.emitter.Emit(session.Identity.Subject, realtime.NewThreadRemoved(threadID, true))

	return &StatusResult{Status: StatusOK, ThreadID: threadID}, nil
}

// threadSnapshot rebuilds the conversation view after a mutation so clients
// can replace it without a refetch.
func (m *Mutator) threadSnapshot(ctx context.Context, threadID, owner string) (*models.ThreadView, error) {
	messages, err := m.messages.GetThreadMessages(ctx, threadID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread snapshot: %w", err)
	}

	records := map[string]*models.Thread{}
	record, err := m.threads.GetThreadByThreadID(ctx, threadID)
	if err != nil && !errors.Is(err, db.ErrThreadNotFound) {
		return nil, fmt.Errorf("failed to load thread record: %w", err)
	}
	if record != nil {
		records[threadID] = record
	}

	views := threads.Group(messages, records)
	if len(views) == 0 {
		return &models.ThreadView{ThreadID: threadID}, nil
	}
	return views[0], nil
}
