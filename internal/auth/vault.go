package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/crypto"
	"github.com/loommail/backend/internal/db"
)

// TokenVault persists provider refresh tokens encrypted at rest, so
// background work can mint access tokens without a live request.
type TokenVault struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
}

// NewTokenVault creates the vault.
func NewTokenVault(pool *pgxpool.Pool, encryptor *crypto.Encryptor) *TokenVault {
	return &TokenVault{pool: pool, encryptor: encryptor}
}

// StoreForSubject encrypts and saves the refresh token for the user behind
// the given provider subject, creating the user record if needed.
func (v *TokenVault) StoreForSubject(ctx context.Context, subject, email, refreshToken string) error {
	userID, err := db.GetOrCreateUser(ctx, v.pool, subject, email)
	if err != nil {
		return err
	}

	encrypted, err := v.encryptor.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	return db.SaveRefreshToken(ctx, v.pool, userID, encrypted)
}

// Load decrypts and returns the stored refresh token for a user.
// Returns db.ErrUserNotFound when nothing is stored.
func (v *TokenVault) Load(ctx context.Context, userID string) (string, error) {
	encrypted, err := db.GetRefreshToken(ctx, v.pool, userID)
	if err != nil {
		return "", err
	}

	token, err := v.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return token, nil
}
