package mailbox

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/loommail/backend/internal/compose"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/realtime"
)

// SendMail submits an outgoing message through the provider, mirrors it into
// the sent view and announces the thread to the sender's live sessions. When
// the message originated from a provider draft, the draft is cleaned up after
// a successful send.
func (m *Mutator) SendMail(ctx context.Context, session *Session, req *compose.Request) (*StatusResult, error) {
	if req.From == "" {
		req.From = session.Identity.Email
	}

	raw, err := compose.BuildRaw(req)
	if err != nil {
		return nil, err
	}

	messageID, threadID, err := m.gateway.SendMessage(ctx, session.AccessToken, raw, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("provider rejected send: %w", err)
	}

	mirror := &models.Message{
		MessageID:   messageID,
		ThreadID:    threadID,
		DeliveredTo: session.Identity.Email,
		From:        req.From,
		To:          strings.Join(req.To, ", "),
		CC:          strings.Join(req.CC, ", "),
		BCC:         strings.Join(req.BCC, ", "),
		Subject:     req.Subject,
		HTML:        req.HTML,
		Date:        time.Now(),
		LabelIDs:    []string{models.LabelSent},
		Attachments: req.Attachments,
	}
	if err := m.messages.SaveMessage(ctx, mirror); err != nil {
		return nil, fmt.Errorf("failed to mirror sent message: %w", err)
	}

	if req.DraftID != "" {
		// Draft cleanup is best-effort; the send already succeeded.
		if err := m.gateway.DeleteDraft(ctx, session.AccessToken, req.DraftID); err != nil {
			log.Printf("Mailbox: failed to delete draft %s after send: %v", req.DraftID, err)
		}
	}

	snapshot, err := m.threadSnapshot(ctx, threadID, session.Identity.Email)
	if err != nil {
		return nil, err
	}
	m.emitter.Emit(session.Identity.Subject, realtime.NewThreadAdded(snapshot, false))

	return &StatusResult{Status: StatusOK, ThreadID: threadID}, nil
}
