package realtime

import "github.com/loommail/backend/internal/models"

// Event names pushed to clients. The important-view variants exist because
// IMPORTANT threads render in a separate list: relocating a thread is a
// delete from one view plus an add to the other, never a plain update.
const (
	EventMailUpdate                = "mail_update"
	EventMailDetailUpdate          = "mail_detail_update"
	EventThreadUpdate              = "thread_update"
	EventMailDeleteThread          = "mail_delete_thread"
	EventMailAddThread             = "mail_add_thread"
	EventMailAddThreadImportant    = "mail_add_thread_important"
	EventMailDeleteThreadImportant = "mail_delete_thread_important"
)

// Event is one realtime push: a name from the fixed set above plus its typed
// payload, addressed to every live connection of a single user.
type Event struct {
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// MailUpdate notifies that a message changed. LabelIDs carries the new label
// set when the change was a label mutation.
type MailUpdate struct {
	ID       string   `json:"_id"`
	LabelIDs []string `json:"labelIds,omitempty"`
}

// ThreadUpdate notifies that a thread's metadata changed.
type ThreadUpdate struct {
	ID       string `json:"_id"`
	Category string `json:"category,omitempty"`
}

// ThreadRemoved tells the client to drop a thread from a view.
type ThreadRemoved struct {
	ID string `json:"_id"`
}

// NewMailUpdate builds the standard label-change event.
func NewMailUpdate(messageID string, labelIDs []string) Event {
	return Event{Name: EventMailUpdate, Payload: MailUpdate{ID: messageID, LabelIDs: labelIDs}}
}

// NewMailDetailUpdate builds the event for changes to an open message.
func NewMailDetailUpdate(messageID string, labelIDs []string) Event {
	return Event{Name: EventMailDetailUpdate, Payload: MailUpdate{ID: messageID, LabelIDs: labelIDs}}
}

// NewThreadUpdate builds the thread-metadata event.
func NewThreadUpdate(threadID, category string) Event {
	return Event{Name: EventThreadUpdate, Payload: ThreadUpdate{ID: threadID, Category: category}}
}

// NewThreadRemoved builds the removal event for the normal or important view.
func NewThreadRemoved(threadID string, important bool) Event {
	name := EventMailDeleteThread
	if important {
		name = EventMailDeleteThreadImportant
	}
	return Event{Name: name, Payload: ThreadRemoved{ID: threadID}}
}

// NewThreadAdded builds the addition event carrying the full thread view so
// clients can insert it without a refetch.
func NewThreadAdded(view *models.ThreadView, important bool) Event {
	name := EventMailAddThread
	if important {
		name = EventMailAddThreadImportant
	}
	return Event{Name: name, Payload: view}
}
