package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loommail/backend/internal/db"
)

// mailEventsChannel is the NOTIFY channel raised by the messages table
// trigger on every insert or update.
const mailEventsChannel = "loommail_mail_events"

// mailEvent mirrors the JSON payload built by the trigger.
type mailEvent struct {
	Op          string   `json:"op"`
	MessageID   string   `json:"message_id"`
	ThreadID    string   `json:"thread_id"`
	DeliveredTo string   `json:"delivered_to"`
	LabelIDs    []string `json:"label_ids"`
}

// Watcher re-derives realtime events from raw mirror writes, covering
// mutations that did not pass through the mutator (bulk ingestion, external
// tooling). It addresses events exactly like the mutator does: by the owning
// user's subject.
type Watcher struct {
	pool *pgxpool.Pool
	hub  *Hub
}

// NewWatcher creates a watcher over the given pool and hub.
func NewWatcher(pool *pgxpool.Pool, hub *Hub) *Watcher {
	return &Watcher{pool: pool, hub: hub}
}

// Run listens for mirror change notifications until the context is
// cancelled. Connection failures are retried with a fixed backoff; missed
// notifications during an outage are simply lost, clients resynchronize via
// the aggregator on their next fetch.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.listen(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Printf("Realtime: mail event listener failed, retrying: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+mailEventsChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		w.handle(ctx, notification.Payload)
	}
}

func (w *Watcher) handle(ctx context.Context, payload string) {
	var event mailEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("Realtime: dropping malformed mail event: %v", err)
		return
	}

	if event.DeliveredTo == "" {
		return
	}

	user, err := db.GetUserByEmail(ctx, w.pool, event.DeliveredTo)
	if errors.Is(err, db.ErrUserNotFound) {
		// Mail for an address nobody has connected with yet.
		return
	}
	if err != nil {
		log.Printf("Realtime: failed to resolve owner for mail event: %v", err)
		return
	}

	w.hub.Emit(user.Subject, NewMailUpdate(event.MessageID, event.LabelIDs))
}
