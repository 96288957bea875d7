package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordBadgeUnlock awards a badge to a user, at most once. Returns true when
// this call inserted the award, false when the user already held the badge.
func RecordBadgeUnlock(ctx context.Context, pool *pgxpool.Pool, userID, badgeName string) (bool, error) {
	tag, err := pool.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, badge_name) DO NOTHING
	`, userID, badgeName)

	if err != nil {
		return false, fmt.Errorf("failed to record badge unlock: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListUnlockedBadges returns the names of the badges the user already holds.
func ListUnlockedBadges(ctx context.Context, pool *pgxpool.Pool, userID string) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, `
		SELECT badge_name FROM user_badges WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked badges: %w", err)
	}
	defer rows.Close()

	unlocked := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan badge name: %w", err)
		}
		unlocked[name] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return unlocked, nil
}
