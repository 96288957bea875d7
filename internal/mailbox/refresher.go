package mailbox

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/auth"
	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/provider"
)

const (
	refreshQueueSize = 64
	refreshWindow    = 24 * time.Hour
)

// Refresher pulls recent provider mail into the mirror whenever a mailbox is
// read. Pokes are queued and deduplicated per owner so a burst of listings
// triggers at most one pull, and a full queue drops pokes instead of
// blocking the read path.
type Refresher struct {
	pool          *pgxpool.Pool
	vault         *auth.TokenVault
	authenticator provider.Authenticator
	lister        provider.MessageLister

	queue chan string

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewRefresher creates the refresher. Run must be started for pokes to have
// any effect.
func NewRefresher(pool *pgxpool.Pool, vault *auth.TokenVault, authenticator provider.Authenticator, lister provider.MessageLister) *Refresher {
	return &Refresher{
		pool:          pool,
		vault:         vault,
		authenticator: authenticator,
		lister:        lister,
		queue:         make(chan string, refreshQueueSize),
		inflight:      map[string]struct{}{},
	}
}

// NotifyMailboxRead queues a pull for the owner's mailbox. Never blocks.
func (r *Refresher) NotifyMailboxRead(owner string) {
	r.mu.Lock()
	if _, queued := r.inflight[owner]; queued {
		r.mu.Unlock()
		return
	}
	r.inflight[owner] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- owner:
	default:
		r.mu.Lock()
		delete(r.inflight, owner)
		r.mu.Unlock()
	}
}

// Run processes queued pulls until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case owner := <-r.queue:
			if err := r.refresh(ctx, owner); err != nil {
				log.Printf("Refresher: Failed to refresh mailbox for %s: %v", owner, err)
			}
			r.mu.Lock()
			delete(r.inflight, owner)
			r.mu.Unlock()
		}
	}
}

// refresh mints an access token from the stored refresh token and mirrors
// everything the provider received in the refresh window. Owners without a
// stored token are skipped; they will be mirrored once they authenticate
// with a refresh credential.
func (r *Refresher) refresh(ctx context.Context, owner string) error {
	user, err := db.GetUserByEmail(ctx, r.pool, owner)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil
		}
		return err
	}

	refreshToken, err := r.vault.Load(ctx, user.ID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil
		}
		return err
	}

	accessToken, err := r.authenticator.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	messages, err := r.lister.ListMessagesSince(ctx, accessToken, owner, time.Now().Add(-refreshWindow))
	if err != nil {
		return err
	}

	for _, message := range messages {
		if err := db.SaveMessage(ctx, r.pool, message); err != nil {
			return err
		}
	}

	return nil
}
