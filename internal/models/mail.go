package models

import (
	"slices"
	"time"
)

// System labels assigned by the mail provider. Free-form labels share the
// same set; these are the ones the core logic branches on.
const (
	LabelUnread    = "UNREAD"
	LabelInbox     = "INBOX"
	LabelSent      = "SENT"
	LabelDraft     = "DRAFT"
	LabelTrash     = "TRASH"
	LabelSpam      = "SPAM"
	LabelImportant = "IMPORTANT"
	LabelStarred   = "STARRED"
)

// Workflow status values stored on a thread. Empty means untriaged.
const (
	StatusTodo = "todo"
	StatusDone = "done"
)

// Message is the local mirror of one provider message.
// MessageID and ThreadID are provider-assigned; DeliveredTo identifies the
// mailbox owner. LabelIDs is a set: no duplicates, order irrelevant.
type Message struct {
	MessageID         string       `json:"messageId"`
	ThreadID          string       `json:"threadId"`
	DeliveredTo       string       `json:"deliveredTo"`
	From              string       `json:"from"`
	To                string       `json:"to"`
	CC                string       `json:"cc,omitempty"`
	BCC               string       `json:"bcc,omitempty"`
	Subject           string       `json:"subject"`
	Snippet           string       `json:"snippet"`
	HTML              string       `json:"html,omitempty"`
	Text              string       `json:"text,omitempty"`
	Date              time.Time    `json:"date"`
	LabelIDs          []string     `json:"labelIds"`
	Category          string       `json:"category,omitempty"`
	UserCategory      string       `json:"userCategory,omitempty"`
	GeneratedCategory string       `json:"generatedCategory,omitempty"`
	DraftID           string       `json:"draftId,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
}

// HasLabel reports whether the message carries the given label.
func (m *Message) HasLabel(label string) bool {
	return slices.Contains(m.LabelIDs, label)
}

// Attachment is one attachment of a mirrored message. Data holds the raw
// bytes; byte storage beyond the mirror row is an external concern.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data,omitempty"`
}

// Thread is the per-conversation record keyed by the provider ThreadID.
// It exists only once a category or status mutation has targeted the
// conversation; until then thread fields default to empty in views.
type Thread struct {
	ThreadID          string `json:"threadId"`
	Summary           string `json:"summary"`
	Category          string `json:"category"`
	UserCategory      string `json:"userCategory"`
	GeneratedCategory string `json:"generatedCategory"`
	InitialCategory   string `json:"initialCategory"`
	StatusInput       string `json:"statusInput"`
}

// EffectiveCategory resolves the category shown to the user:
// a non-empty user override wins, then the generated category, then the
// machine-suggested one.
func (t *Thread) EffectiveCategory() string {
	if t.UserCategory != "" {
		return t.UserCategory
	}
	if t.GeneratedCategory != "" {
		return t.GeneratedCategory
	}
	return t.Category
}

// EmailSummary is the per-message projection embedded in a ThreadView.
type EmailSummary struct {
	MessageID         string       `json:"messageId"`
	Snippet           string       `json:"snippet"`
	To                string       `json:"to"`
	From              string       `json:"from"`
	Subject           string       `json:"subject"`
	LabelIDs          []string     `json:"labelIds"`
	Category          string       `json:"category,omitempty"`
	UserCategory      string       `json:"userCategory,omitempty"`
	GeneratedCategory string       `json:"generatedCategory,omitempty"`
	Date              time.Time    `json:"date"`
	DraftID           string       `json:"draftId,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	AttachmentCount   int          `json:"attachmentCount"`
}

// ThreadView is one conversation as returned by the aggregator: the thread
// record's fields (empty when no record exists) plus every matching message.
// LastInboxEmailDate is the max date among messages labeled INBOX, nil when
// none qualify.
type ThreadView struct {
	ThreadID           string         `json:"_id"`
	Summary            string         `json:"summary"`
	Category           string         `json:"category"`
	UserCategory       string         `json:"userCategory"`
	GeneratedCategory  string         `json:"generatedCategory"`
	StatusInput        string         `json:"statusInput"`
	Emails             []EmailSummary `json:"emails"`
	LastInboxEmailDate *time.Time     `json:"lastInboxEmailDate"`
}

// Interaction records one "thread reached done" event, at most one per
// thread. It feeds the gamification metrics.
type Interaction struct {
	ThreadID  string    `json:"threadId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LabelSummary is one entry of the mailbox label listing: a system view or
// user category with its unread count.
type LabelSummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	UnreadCount int    `json:"unreadCount"`
	Color       string `json:"color,omitempty"`
}
