package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/models"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

// MessageFilter is a pushed-down match over the messages table. Zero-valued
// fields are skipped. String fields match as case-insensitive substrings,
// mirroring the permissive matching clients expect from mailbox search.
type MessageFilter struct {
	DeliveredTo string
	// OwnerAddress matches mail the owner either received or sent
	// (delivered_to or from_address). Used when a search term overrides the
	// DeliveredTo constraint but the listing must stay scoped to one mailbox.
	OwnerAddress string
	From         string
	To           string
	Subject      string
	Text         string
	Filename     string
	Category     string

	AnyLabels []string // at least one of these labels
	AllLabels []string // every one of these labels
	NotLabels []string // none of these labels

	RequireDraftID bool
}

// whereClause renders the filter as a WHERE body plus its ordered arguments.
func (f *MessageFilter) whereClause() (string, []any) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	like := func(column, value string) {
		conds = append(conds, fmt.Sprintf("%s ILIKE %s", column, arg("%"+value+"%")))
	}

	if f.DeliveredTo != "" {
		like("delivered_to", f.DeliveredTo)
	}
	if f.OwnerAddress != "" {
		p := arg("%" + f.OwnerAddress + "%")
		conds = append(conds, fmt.Sprintf("(delivered_to ILIKE %[1]s OR from_address ILIKE %[1]s)", p))
	}
	if f.From != "" {
		like("from_address", f.From)
	}
	if f.To != "" {
		like("to_address", f.To)
	}
	if f.Subject != "" {
		like("subject", f.Subject)
	}
	if f.Category != "" {
		like("category", f.Category)
	}
	if f.Text != "" {
		p := arg("%" + f.Text + "%")
		conds = append(conds, fmt.Sprintf(
			"(subject ILIKE %[1]s OR body_text ILIKE %[1]s OR from_address ILIKE %[1]s OR to_address ILIKE %[1]s OR snippet ILIKE %[1]s)", p))
	}
	if f.Filename != "" {
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(attachments) a WHERE a->>'filename' ILIKE %s)",
			arg("%"+f.Filename+"%")))
	}
	if len(f.AnyLabels) > 0 {
		conds = append(conds, fmt.Sprintf("label_ids && %s", arg(f.AnyLabels)))
	}
	if len(f.AllLabels) > 0 {
		conds = append(conds, fmt.Sprintf("label_ids @> %s", arg(f.AllLabels)))
	}
	if len(f.NotLabels) > 0 {
		conds = append(conds, fmt.Sprintf("NOT label_ids && %s", arg(f.NotLabels)))
	}
	if f.RequireDraftID {
		conds = append(conds, "draft_id <> ''")
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

const messageColumns = `
	message_id,
	thread_id,
	delivered_to,
	from_address,
	to_address,
	cc_address,
	bcc_address,
	subject,
	snippet,
	body_html,
	body_text,
	sent_at,
	label_ids,
	category,
	user_category,
	generated_category,
	draft_id,
	attachments`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	err := row.Scan(
		&msg.MessageID,
		&msg.ThreadID,
		&msg.DeliveredTo,
		&msg.From,
		&msg.To,
		&msg.CC,
		&msg.BCC,
		&msg.Subject,
		&msg.Snippet,
		&msg.HTML,
		&msg.Text,
		&msg.Date,
		&msg.LabelIDs,
		&msg.Category,
		&msg.UserCategory,
		&msg.GeneratedCategory,
		&msg.DraftID,
		&msg.Attachments,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SaveMessage saves or updates a mirrored message.
func SaveMessage(ctx context.Context, pool *pgxpool.Pool, message *models.Message) error {
	attachments := message.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO messages (
			message_id,
			thread_id,
			delivered_to,
			from_address,
			to_address,
			cc_address,
			bcc_address,
			subject,
			snippet,
			body_html,
			body_text,
			sent_at,
			label_ids,
			category,
			user_category,
			generated_category,
			draft_id,
			attachments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (message_id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			delivered_to = EXCLUDED.delivered_to,
			from_address = EXCLUDED.from_address,
			to_address = EXCLUDED.to_address,
			cc_address = EXCLUDED.cc_address,
			bcc_address = EXCLUDED.bcc_address,
			subject = EXCLUDED.subject,
			snippet = EXCLUDED.snippet,
			body_html = EXCLUDED.body_html,
			body_text = EXCLUDED.body_text,
			sent_at = EXCLUDED.sent_at,
			label_ids = EXCLUDED.label_ids,
			category = EXCLUDED.category,
			user_category = EXCLUDED.user_category,
			generated_category = EXCLUDED.generated_category,
			draft_id = EXCLUDED.draft_id,
			attachments = EXCLUDED.attachments
	`,
		message.MessageID,
		message.ThreadID,
		message.DeliveredTo,
		message.From,
		message.To,
		message.CC,
		message.BCC,
		message.Subject,
		message.Snippet,
		message.HTML,
		message.Text,
		message.Date,
		message.LabelIDs,
		message.Category,
		message.UserCategory,
		message.GeneratedCategory,
		message.DraftID,
		attachments,
	)

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetMessageByID returns a mirrored message by its provider message ID.
func GetMessageByID(ctx context.Context, pool *pgxpool.Pool, messageID string) (*models.Message, error) {
	row := pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE message_id = $1`, messageID)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListMessages returns every message matching the filter, oldest first so
// downstream grouping preserves conversation order.
func ListMessages(ctx context.Context, pool *pgxpool.Pool, filter *MessageFilter) ([]*models.Message, error) {
	where, args := filter.whereClause()

	rows, err := pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+where+` ORDER BY sent_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CountMessages returns the number of messages matching the filter.
func CountMessages(ctx context.Context, pool *pgxpool.Pool, filter *MessageFilter) (int, error) {
	where, args := filter.whereClause()

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// GetThreadMessages returns every message of a conversation for the given
// owner, oldest first.
func GetThreadMessages(ctx context.Context, pool *pgxpool.Pool, threadID, deliveredTo string) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = $1 AND delivered_to ILIKE $2
		ORDER BY sent_at
	`, threadID, "%"+deliveredTo+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// GetUnreadThreadMessages returns the still-unread messages of a
// conversation belonging to the given owner.
func GetUnreadThreadMessages(ctx context.Context, pool *pgxpool.Pool, threadID, deliveredTo string) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE thread_id = $1 AND delivered_to ILIKE $2 AND label_ids @> ARRAY['UNREAD']
		ORDER BY sent_at
	`, threadID, "%"+deliveredTo+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get unread thread messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// AddMessageLabels adds labels to a message's label set and returns the new
// set. Duplicates collapse: label_ids stays a set. The whole update is one
// atomic statement, which is the only guard against concurrent toggles on
// the same message.
func AddMessageLabels(ctx context.Context, pool *pgxpool.Pool, messageID string, labels []string) ([]string, error) {
	var labelIDs []string

	err := pool.QueryRow(ctx, `
		UPDATE messages
		SET label_ids = (
			SELECT COALESCE(array_agg(DISTINCT l), '{}')
			FROM unnest(label_ids || $2::text[]) AS l
		)
		WHERE message_id = $1
		RETURNING label_ids
	`, messageID, labels).Scan(&labelIDs)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add labels: %w", err)
	}

	return labelIDs, nil
}

// RemoveMessageLabels removes labels from a message's label set and returns
// the new set. Removing an absent label is a no-op.
func RemoveMessageLabels(ctx context.Context, pool *pgxpool.Pool, messageID string, labels []string) ([]string, error) {
	var labelIDs []string

	err := pool.QueryRow(ctx, `
		UPDATE messages
		SET label_ids = (
			SELECT COALESCE(array_agg(l), '{}')
			FROM unnest(label_ids) AS l
			WHERE NOT (l = ANY($2::text[]))
		)
		WHERE message_id = $1
		RETURNING label_ids
	`, messageID, labels).Scan(&labelIDs)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove labels: %w", err)
	}

	return labelIDs, nil
}

// TrashThread replaces the label set of every message in the thread owned by
// deliveredTo with {TRASH}. Messages are never hard-deleted here; permanent
// removal belongs to the provider. Returns the number of messages trashed.
func TrashThread(ctx context.Context, pool *pgxpool.Pool, threadID, deliveredTo string) (int, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE messages
		SET label_ids = ARRAY['TRASH']
		WHERE thread_id = $1 AND delivered_to ILIKE $2
	`, threadID, "%"+deliveredTo+"%")

	if err != nil {
		return 0, fmt.Errorf("failed to trash thread: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListRecentAddresses returns distinct values of an address column
// (from_address or to_address) over the owner's mailbox, most recent first.
// Feeds search-bar completions.
func ListRecentAddresses(ctx context.Context, pool *pgxpool.Pool, deliveredTo, column string, limit int) ([]string, error) {
	if column != "from_address" && column != "to_address" {
		return nil, fmt.Errorf("unsupported address column %q", column)
	}

	rows, err := pool.Query(ctx, `
		SELECT `+column+`
		FROM messages
		WHERE delivered_to ILIKE $1
		GROUP BY `+column+`
		ORDER BY max(sent_at) DESC
		LIMIT $2
	`, "%"+deliveredTo+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		if addr != "" {
			addresses = append(addresses, addr)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}
