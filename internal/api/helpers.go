package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/auth"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/mailbox"
)

// WriteJSONResponse encodes v to a buffer first so an encoding failure never
// produces a partial body, then writes it out. Returns false on failure.
func WriteJSONResponse(w http.ResponseWriter, v any) bool {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write response: %v", err)
		return false
	}
	return true
}

// SessionResolver turns the authenticated request into a mutation session.
// Implementations write the HTTP error themselves and return false when the
// request carries no usable identity.
type SessionResolver interface {
	Resolve(ctx context.Context, w http.ResponseWriter) (*mailbox.Session, bool)
}

// NewSessionResolver returns the store-backed resolver: the validated
// identity and access token come from the middleware's context, and the
// local user record is resolved (or created) from the provider subject.
func NewSessionResolver(pool *pgxpool.Pool) SessionResolver {
	return &dbSessions{pool: pool}
}

type dbSessions struct {
	pool *pgxpool.Pool
}

func (s *dbSessions) Resolve(ctx context.Context, w http.ResponseWriter) (*mailbox.Session, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		log.Println("API: No identity in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	token, ok := auth.AccessTokenFromContext(ctx)
	if !ok {
		log.Println("API: No access token in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	userID, err := db.GetOrCreateUser(ctx, s.pool, identity.Subject, identity.Email)
	if err != nil {
		log.Printf("API: Failed to get/create user: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	return &mailbox.Session{
		AccessToken: token,
		Identity:    identity,
		UserID:      userID,
	}, true
}

// DecodeJSONBody decodes the request body into v, rejecting unknown fields.
// Writes a 400 and returns false on malformed input.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
