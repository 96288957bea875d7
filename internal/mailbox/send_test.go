package mailbox

import (
	"context"
	"testing"

	"github.com/loommail/backend/internal/compose"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/realtime"
)

func TestSendMailMirrorsIntoSentView(t *testing.T) {
	f := newFixture()

	result, err := f.mutator.SendMail(context.Background(), f.session, &compose.Request{
		To:      []string{"alice@example.com"},
		Subject: "Budget review",
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("SendMail: %v", err)
	}
	if result.Status != StatusOK || result.ThreadID != "t-new" {
		t.Errorf("result = %+v", result)
	}

	mirror := f.messages.msgs["sent-1"]
	if mirror == nil {
		t.Fatal("sent message not mirrored")
	}
	if !mirror.HasLabel(models.LabelSent) {
		t.Errorf("labels = %v, want SENT", mirror.LabelIDs)
	}
	if mirror.From != "a@x.com" {
		t.Errorf("From = %q, want the sender's address", mirror.From)
	}

	if names := f.emitter.names(); len(names) != 1 || names[0] != realtime.EventMailAddThread {
		t.Errorf("events = %v, want one mail_add_thread", names)
	}
}

func TestSendMailReplyKeepsThread(t *testing.T) {
	f := newFixture()

	result, err := f.mutator.SendMail(context.Background(), f.session, &compose.Request{
		To:       []string{"alice@example.com"},
		Subject:  "Budget review",
		HTML:     "<p>agreed</p>",
		ThreadID: "t1",
		DraftID:  "d1",
	})
	if err != nil {
		t.Fatalf("SendMail: %v", err)
	}
	if result.ThreadID != "t1" {
		t.Errorf("ThreadID = %q, want t1", result.ThreadID)
	}
	if len(f.gateway.deletedDrafts) != 1 || f.gateway.deletedDrafts[0] != "d1" {
		t.Errorf("deleted drafts = %v, want [d1]", f.gateway.deletedDrafts)
	}
}

func TestSendMailProviderFailure(t *testing.T) {
	f := newFixture()
	f.gateway.fail = true

	_, err := f.mutator.SendMail(context.Background(), f.session, &compose.Request{
		To:      []string{"alice@example.com"},
		Subject: "x",
	})
	if err == nil {
		t.Fatal("expected provider error")
	}
	if len(f.messages.msgs) != 0 {
		t.Error("message mirrored despite provider failure")
	}
}
