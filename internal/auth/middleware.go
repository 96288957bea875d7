// Package auth authenticates API requests against the mail provider's
// credential introspection endpoint. There is no local session store: the
// provider-issued access token is the session, refreshed on expiry when the
// client supplied a refresh token.
package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/provider"
)

type contextKey string

const (
	identityKey    contextKey = "identity"
	accessTokenKey contextKey = "access_token"
)

// RefreshTokenHeader carries the optional refresh credential alongside the
// bearer token.
const RefreshTokenHeader = "X-Refresh-Token"

// Middleware validates credentials via the provider.
type Middleware struct {
	authenticator provider.Authenticator
	vault         *TokenVault
}

// NewMiddleware creates the middleware.
func NewMiddleware(authenticator provider.Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator}
}

// UseVault makes the middleware persist refresh tokens it sees, so
// background work can later mint access tokens for the user.
func (m *Middleware) UseVault(vault *TokenVault) {
	m.vault = vault
}

// RequireAuth checks the bearer token, refreshing it once when expired and a
// refresh token is present. On success the resolved identity and the token
// that actually validated are stored in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			log.Println("Auth: No bearer token present")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		refreshToken := r.Header.Get(RefreshTokenHeader)
		identity, validToken, err := m.Authenticate(r.Context(), token, refreshToken)
		if err != nil {
			log.Printf("Auth: Credential validation failed: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if m.vault != nil && refreshToken != "" {
			// Persist off the request path; the request context dies with
			// the response.
			go func() {
				if err := m.vault.StoreForSubject(context.Background(), identity.Subject, identity.Email, refreshToken); err != nil {
					log.Printf("Auth: Failed to store refresh token: %v", err)
				}
			}()
		}

		ctx := context.WithValue(r.Context(), identityKey, *identity)
		ctx = context.WithValue(ctx, accessTokenKey, validToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate validates an access token, falling back to one refresh
// attempt. It returns the identity plus the token that passed introspection.
func (m *Middleware) Authenticate(ctx context.Context, accessToken, refreshToken string) (*models.Identity, string, error) {
	identity, err := m.authenticator.Introspect(ctx, accessToken)
	if err == nil {
		return identity, accessToken, nil
	}

	if refreshToken == "" {
		return nil, "", fmt.Errorf("introspection failed: %w", err)
	}

	refreshed, refreshErr := m.authenticator.RefreshAccessToken(ctx, refreshToken)
	if refreshErr != nil {
		return nil, "", fmt.Errorf("refresh after failed introspection: %w", refreshErr)
	}

	identity, err = m.authenticator.Introspect(ctx, refreshed)
	if err != nil {
		return nil, "", fmt.Errorf("introspection of refreshed token failed: %w", err)
	}

	return identity, refreshed, nil
}

// BearerToken extracts the token from the Authorization header. The Bearer
// scheme is matched case-insensitively per RFC 7235.
func BearerToken(r *http.Request) string {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(strings.Join(fields[1:], " "))
}

// IdentityFromContext returns the authenticated identity.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(models.Identity)
	return identity, ok
}

// AccessTokenFromContext returns the access token that validated, which may
// be a refreshed one rather than the token the client sent.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey).(string)
	return token, ok
}
