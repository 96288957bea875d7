package mailbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
)

// MessageStore is the mirror surface the mutator writes through.
type MessageStore interface {
	GetMessageByID(ctx context.Context, messageID string) (*models.Message, error)
	AddMessageLabels(ctx context.Context, messageID string, labels []string) ([]string, error)
	RemoveMessageLabels(ctx context.Context, messageID string, labels []string) ([]string, error)
	GetThreadMessages(ctx context.Context, threadID, deliveredTo string) ([]*models.Message, error)
	GetUnreadThreadMessages(ctx context.Context, threadID, deliveredTo string) ([]*models.Message, error)
	TrashThread(ctx context.Context, threadID, deliveredTo string) (int, error)
	SaveMessage(ctx context.Context, message *models.Message) error
}

// ThreadStore is the thread-record surface the mutator writes through.
type ThreadStore interface {
	GetThreadByThreadID(ctx context.Context, threadID string) (*models.Thread, error)
	GetOrCreateThread(ctx context.Context, threadID string) (*models.Thread, error)
	SetThreadUserCategory(ctx context.Context, threadID, category string) error
	SetThreadStatus(ctx context.Context, threadID, status string) error
	SetThreadCategoryAndStatus(ctx context.Context, threadID, category, status string) error
}

// InteractionStore records thread completions, at most once per thread.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, threadID, userID string) (bool, error)
}

// pgStore backs the store interfaces with the db package.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewStores returns pool-backed implementations of the mutator's store
// dependencies.
func NewStores(pool *pgxpool.Pool) (MessageStore, ThreadStore, InteractionStore) {
	s := &pgStore{pool: pool}
	return s, s, s
}

func (s *pgStore) GetMessageByID(ctx context.Context, messageID string) (*models.Message, error) {
	return db.GetMessageByID(ctx, s.pool, messageID)
}

func (s *pgStore) AddMessageLabels(ctx context.Context, messageID string, labels []string) ([]string, error) {
	return db.AddMessageLabels(ctx, s.pool, messageID, labels)
}

func (s *pgStore) RemoveMessageLabels(ctx context.Context, messageID string, labels []string) ([]string, error) {
	return db.RemoveMessageLabels(ctx, s.pool, messageID, labels)
}

func (s *pgStore) GetThreadMessages(ctx context.Context, threadID, deliveredTo string) ([]*models.Message, error) {
	return db.GetThreadMessages(ctx, s.pool, threadID, deliveredTo)
}

func (s *pgStore) GetUnreadThreadMessages(ctx context.Context, threadID, deliveredTo string) ([]*models.Message, error) {
	return db.GetUnreadThreadMessages(ctx, s.pool, threadID, deliveredTo)
}

func (s *pgStore) TrashThread(ctx context.Context, threadID, deliveredTo string) (int, error) {
	return db.TrashThread(ctx, s.pool, threadID, deliveredTo)
}

func (s *pgStore) SaveMessage(ctx context.Context, message *models.Message) error {
	return db.SaveMessage(ctx, s.pool, message)
}

func (s *pgStore) GetThreadByThreadID(ctx context.Context, threadID string) (*models.Thread, error) {
	return db.GetThreadByThreadID(ctx, s.pool, threadID)
}

func (s *pgStore) GetOrCreateThread(ctx context.Context, threadID string) (*models.Thread, error) {
	return db.GetOrCreateThread(ctx, s.pool, threadID)
}

func (s *pgStore) SetThreadUserCategory(ctx context.Context, threadID, category string) error {
	return db.SetThreadUserCategory(ctx, s.pool, threadID, category)
}

func (s *pgStore) SetThreadStatus(ctx context.Context, threadID, status string) error {
	return db.SetThreadStatus(ctx, s.pool, threadID, status)
}

func (s *pgStore) SetThreadCategoryAndStatus(ctx context.Context, threadID, category, status string) error {
	return db.SetThreadCategoryAndStatus(ctx, s.pool, threadID, category, status)
}

func (s *pgStore) RecordInteraction(ctx context.Context, threadID, userID string) (bool, error) {
	return db.RecordInteraction(ctx, s.pool, threadID, userID)
}
