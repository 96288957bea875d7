package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loommail/backend/internal/models"
)

// ErrUserNotFound is returned when a requested user cannot be found.
var ErrUserNotFound = errors.New("user not found")

// GetOrCreateUser returns the user's id for the given provider subject,
// creating the user on first contact. The email is refreshed on every call
// since subjects are stable but addresses can change.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, subject, email string) (string, error) {
	var userID string

	err := pool.QueryRow(ctx, `
		INSERT INTO users (subject, email)
		VALUES ($1, $2)
		ON CONFLICT (subject) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, subject, email).Scan(&userID)

	if err != nil {
		return "", fmt.Errorf("failed to get or create user: %w", err)
	}

	return userID, nil
}

// GetUserByEmail returns the user owning the given mailbox address.
func GetUserByEmail(ctx context.Context, pool *pgxpool.Pool, email string) (*models.User, error) {
	var user models.User

	err := pool.QueryRow(ctx, `
		SELECT id, subject, email
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Subject, &user.Email)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// SaveRefreshToken stores the user's encrypted provider refresh token.
func SaveRefreshToken(ctx context.Context, pool *pgxpool.Pool, userID string, encrypted []byte) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO tokens (user_id, refresh_token_encrypted, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
			updated_at = now()
	`, userID, encrypted)

	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	return nil
}

// GetRefreshToken returns the user's encrypted provider refresh token.
func GetRefreshToken(ctx context.Context, pool *pgxpool.Pool, userID string) ([]byte, error) {
	var encrypted []byte

	err := pool.QueryRow(ctx, `
		SELECT refresh_token_encrypted FROM tokens WHERE user_id = $1
	`, userID).Scan(&encrypted)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return encrypted, nil
}
