package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/models"
)

// ErrThreadNotFound is returned when a requested thread cannot be found.
var ErrThreadNotFound = errors.New("thread not found")

// GetThreadByThreadID returns a thread record by its provider thread ID.
func GetThreadByThreadID(ctx context.Context, pool *pgxpool.Pool, threadID string) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		SELECT thread_id, summary, category, user_category, generated_category, initial_category, status_input
		FROM threads
		WHERE thread_id = $1
	`, threadID).Scan(
		&thread.ThreadID,
		&thread.Summary,
		&thread.Category,
		&thread.UserCategory,
		&thread.GeneratedCategory,
		&thread.InitialCategory,
		&thread.StatusInput,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// GetThreadsByThreadIDs returns the existing thread records for the given
// IDs, keyed by thread ID. Missing threads are simply absent from the map;
// the aggregator treats them as all-empty records.
func GetThreadsByThreadIDs(ctx context.Context, pool *pgxpool.Pool, threadIDs []string) (map[string]*models.Thread, error) {
	threads := make(map[string]*models.Thread)
	if len(threadIDs) == 0 {
		return threads, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT thread_id, summary, category, user_category, generated_category, initial_category, status_input
		FROM threads
		WHERE thread_id = ANY($1)
	`, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get threads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var thread models.Thread
		if err := rows.Scan(
			&thread.ThreadID,
			&thread.Summary,
			&thread.Category,
			&thread.UserCategory,
			&thread.GeneratedCategory,
			&thread.InitialCategory,
			&thread.StatusInput,
		); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads[thread.ThreadID] = &thread
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// GetOrCreateThread returns the thread record for the given ID, creating an
// all-empty one when none exists yet. Thread records materialize lazily the
// first time a category or status mutation targets the conversation.
func GetOrCreateThread(ctx context.Context, pool *pgxpool.Pool, threadID string) (*models.Thread, error) {
	var thread models.Thread

	err := pool.QueryRow(ctx, `
		INSERT INTO threads (thread_id)
		VALUES ($1)
		ON CONFLICT (thread_id) DO UPDATE SET thread_id = EXCLUDED.thread_id
		RETURNING thread_id, summary, category, user_category, generated_category, initial_category, status_input
	`, threadID).Scan(
		&thread.ThreadID,
		&thread.Summary,
		&thread.Category,
		&thread.UserCategory,
		&thread.GeneratedCategory,
		&thread.InitialCategory,
		&thread.StatusInput,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get or create thread: %w", err)
	}

	return &thread, nil
}

// SetThreadUserCategory applies a user category override. The current
// machine category is snapshotted into initial_category first, so the
// pre-intervention suggestion stays auditable no matter how many times the
// user re-categorizes.
func SetThreadUserCategory(ctx context.Context, pool *pgxpool.Pool, threadID, category string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET initial_category = category, user_category = $2
		WHERE thread_id = $1
	`, threadID, category)

	if err != nil {
		return fmt.Errorf("failed to set thread category: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}

// SetThreadStatus sets the workflow status ("todo", "done" or empty).
func SetThreadStatus(ctx context.Context, pool *pgxpool.Pool, threadID, status string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET status_input = $2
		WHERE thread_id = $1
	`, threadID, status)

	if err != nil {
		return fmt.Errorf("failed to set thread status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}

// SetThreadCategoryAndStatus applies both mutations in one statement, with
// the same initial_category snapshot rule as SetThreadUserCategory.
func SetThreadCategoryAndStatus(ctx context.Context, pool *pgxpool.Pool, threadID, category, status string) error {
	tag, err := pool.Exec(ctx, `
		UPDATE threads
		SET initial_category = category, user_category = $2, status_input = $3
		WHERE thread_id = $1
	`, threadID, category, status)

	if err != nil {
		return fmt.Errorf("failed to set thread category and status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrThreadNotFound
	}

	return nil
}

// CountThreadsWithStatus returns how many threads of the owner's mailbox
// carry the given workflow status. Feeds the label summary counts.
func CountThreadsWithStatus(ctx context.Context, pool *pgxpool.Pool, deliveredTo, status string) (int, error) {
	var count int

	err := pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT t.thread_id)
		FROM threads t
		JOIN messages m ON m.thread_id = t.thread_id
		WHERE t.status_input = $1 AND m.delivered_to ILIKE $2
	`, status, "%"+deliveredTo+"%").Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count threads by status: %w", err)
	}

	return count, nil
}
