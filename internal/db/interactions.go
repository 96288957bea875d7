package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/models"
)

// RecordInteraction inserts the "thread completed" audit record for a
// thread, at most once ever. Returns true when this call inserted the
// record, false when one already existed. The unique constraint on
// thread_id makes concurrent "done" transitions safe: losers observe
// recorded == false and skip unlock evaluation.
func RecordInteraction(ctx context.Context, pool *pgxpool.Pool, threadID, userID string) (bool, error) {
	tag, err := pool.Exec(ctx, `
		INSERT INTO mails_interactions (thread_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (thread_id) DO NOTHING
	`, threadID, userID)

	if err != nil {
		return false, fmt.Errorf("failed to record interaction: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountInteractions returns the user's lifetime completed-thread count.
func CountInteractions(ctx context.Context, pool *pgxpool.Pool, userID string) (int, error) {
	var count int

	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM mails_interactions WHERE user_id = $1
	`, userID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}

	return count, nil
}

// CountInteractionsSince returns how many threads the user completed at or
// after the given instant. Used for streak and speed-run metrics.
func CountInteractionsSince(ctx context.Context, pool *pgxpool.Pool, userID string, since time.Time) (int, error) {
	var count int

	err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM mails_interactions WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count recent interactions: %w", err)
	}

	return count, nil
}

// ListInteractions returns the user's interactions oldest first.
func ListInteractions(ctx context.Context, pool *pgxpool.Pool, userID string) ([]*models.Interaction, error) {
	rows, err := pool.Query(ctx, `
		SELECT thread_id, user_id, created_at
		FROM mails_interactions
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*models.Interaction
	for rows.Next() {
		var interaction models.Interaction
		if err := rows.Scan(&interaction.ThreadID, &interaction.UserID, &interaction.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, &interaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return interactions, nil
}

// CountCategorizedInteractions returns how many of the user's completed
// threads carry a user category override. Feeds the categorization metric.
func CountCategorizedInteractions(ctx context.Context, pool *pgxpool.Pool, userID string) (int, error) {
	var count int

	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM mails_interactions i
		JOIN threads t ON t.thread_id = i.thread_id
		WHERE i.user_id = $1 AND t.user_category <> ''
	`, userID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count categorized interactions: %w", err)
	}

	return count, nil
}
