package mailbox

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/loommail/backend/internal/db"
	"github.com/loommail/backend/internal/models"
	"github.com/loommail/backend/internal/realtime"
)

type fakeMessages struct {
	msgs map[string]*models.Message
}

func (f *fakeMessages) GetMessageByID(_ context.Context, messageID string) (*models.Message, error) {
	msg, ok := f.msgs[messageID]
	if !ok {
		return nil, db.ErrMessageNotFound
	}
	return msg, nil
}

func (f *fakeMessages) AddMessageLabels(_ context.Context, messageID string, labels []string) ([]string, error) {
	msg, ok := f.msgs[messageID]
	if !ok {
		return nil, db.ErrMessageNotFound
	}
	for _, label := range labels {
		if !slices.Contains(msg.LabelIDs, label) {
			msg.LabelIDs = append(msg.LabelIDs, label)
		}
	}
	return slices.Clone(msg.LabelIDs), nil
}

func (f *fakeMessages) RemoveMessageLabels(_ context.Context, messageID string, labels []string) ([]string, error) {
	msg, ok := f.msgs[messageID]
	if !ok {
		return nil, db.ErrMessageNotFound
	}
	kept := msg.LabelIDs[:0]
	for _, label := range msg.LabelIDs {
		if !slices.Contains(labels, label) {
			kept = append(kept, label)
		}
	}
	msg.LabelIDs = kept
	return slices.Clone(msg.LabelIDs), nil
}

func (f *fakeMessages) GetThreadMessages(_ context.Context, threadID, _ string) ([]*models.Message, error) {
	var messages []*models.Message
	for _, msg := range f.msgs {
		if msg.ThreadID == threadID {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (f *fakeMessages) GetUnreadThreadMessages(_ context.Context, threadID, _ string) ([]*models.Message, error) {
	var messages []*models.Message
	for _, msg := range f.msgs {
		if msg.ThreadID == threadID && msg.HasLabel(models.LabelUnread) {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (f *fakeMessages) TrashThread(_ context.Context, threadID, _ string) (int, error) {
	trashed := 0
	for _, msg := range f.msgs {
		if msg.ThreadID == threadID {
			msg.LabelIDs = []string{models.LabelTrash}
			trashed++
		}
	}
	return trashed, nil
}

func (f *fakeMessages) SaveMessage(_ context.Context, message *models.Message) error {
	f.msgs[message.MessageID] = message
	return nil
}

type fakeThreads struct {
	records map[string]*models.Thread
}

func (f *fakeThreads) GetThreadByThreadID(_ context.Context, threadID string) (*models.Thread, error) {
	record, ok := f.records[threadID]
	if !ok {
		return nil, db.ErrThreadNotFound
	}
	return record, nil
}

func (f *fakeThreads) GetOrCreateThread(_ context.Context, threadID string) (*models.Thread, error) {
	if record, ok := f.records[threadID]; ok {
		return record, nil
	}
	record := &models.Thread{ThreadID: threadID}
	f.records[threadID] = record
	return record, nil
}

func (f *fakeThreads) SetThreadUserCategory(_ context.Context, threadID, category string) error {
	record, ok := f.records[threadID]
	if !ok {
		return db.ErrThreadNotFound
	}
	record.InitialCategory = record.Category
	record.UserCategory = category
	return nil
}

func (f *fakeThreads) SetThreadStatus(_ context.Context, threadID, status string) error {
	record, ok := f.records[threadID]
	if !ok {
		return db.ErrThreadNotFound
	}
	record.StatusInput = status
	return nil
}

func (f *fakeThreads) SetThreadCategoryAndStatus(_ context.Context, threadID, category, status string) error {
	if err := f.SetThreadUserCategory(nil, threadID, category); err != nil {
		return err
	}
	return f.SetThreadStatus(nil, threadID, status)
}

type fakeInteractions struct {
	recorded map[string]string
}

func (f *fakeInteractions) RecordInteraction(_ context.Context, threadID, userID string) (bool, error) {
	if _, ok := f.recorded[threadID]; ok {
		return false, nil
	}
	f.recorded[threadID] = userID
	return true, nil
}

type gatewayCall struct {
	messageID string
	add       []string
	remove    []string
}

type fakeGateway struct {
	fail          bool
	calls         []gatewayCall
	trashed       []string
	deletedDrafts []string
}

func (f *fakeGateway) ModifyLabels(_ context.Context, _, messageID string, add, remove []string) ([]string, error) {
	if f.fail {
		return nil, errors.New("provider unavailable")
	}
	f.calls = append(f.calls, gatewayCall{messageID: messageID, add: add, remove: remove})
	return nil, nil
}

func (f *fakeGateway) TrashThread(_ context.Context, _, threadID string) error {
	if f.fail {
		return errors.New("provider unavailable")
	}
	f.trashed = append(f.trashed, threadID)
	return nil
}

func (f *fakeGateway) SendMessage(_ context.Context, _, _, threadID string) (string, string, error) {
	if f.fail {
		return "", "", errors.New("provider unavailable")
	}
	if threadID == "" {
		threadID = "t-new"
	}
	return "sent-1", threadID, nil
}

func (f *fakeGateway) DeleteDraft(_ context.Context, _, draftID string) error {
	f.deletedDrafts = append(f.deletedDrafts, draftID)
	return nil
}

type fakeUnlocker struct {
	calls int
}

func (f *fakeUnlocker) OnThreadCompleted(_ context.Context, _ string) ([]models.UnlockEvent, error) {
	f.calls++
	return []models.UnlockEvent{{BadgeName: "Inbox Explorer", LevelNumber: 1}}, nil
}

type emitted struct {
	subject string
	event   realtime.Event
}

type fakeEmitter struct {
	events []emitted
}

func (f *fakeEmitter) Emit(subject string, event realtime.Event) {
	f.events = append(f.events, emitted{subject: subject, event: event})
}

func (f *fakeEmitter) names() []string {
	var names []string
	for _, e := range f.events {
		names = append(names, e.event.Name)
	}
	return names
}

type fixture struct {
	mutator      *Mutator
	messages     *fakeMessages
	threads      *fakeThreads
	interactions *fakeInteractions
	gateway      *fakeGateway
	unlocker     *fakeUnlocker
	emitter      *fakeEmitter
	session      *Session
}

func newFixture() *fixture {
	f := &fixture{
		messages:     &fakeMessages{msgs: map[string]*models.Message{}},
		threads:      &fakeThreads{records: map[string]*models.Thread{}},
		interactions: &fakeInteractions{recorded: map[string]string{}},
		gateway:      &fakeGateway{},
		unlocker:     &fakeUnlocker{},
		emitter:      &fakeEmitter{},
		session: &Session{
			AccessToken: "token",
			Identity:    models.Identity{Subject: "sub-1", Email: "a@x.com"},
			UserID:      "user-1",
		},
	}
	f.mutator = NewMutator(f.messages, f.threads, f.interactions, f.gateway, f.unlocker, f.emitter)
	return f
}

func (f *fixture) addMessage(id, threadID string, labels ...string) *models.Message {
	msg := &models.Message{MessageID: id, ThreadID: threadID, DeliveredTo: "a@x.com", LabelIDs: labels}
	f.messages.msgs[id] = msg
	return msg
}

func TestSetLabelsRoundTrip(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox, models.LabelUnread)
	ctx := context.Background()

	original := slices.Clone(f.messages.msgs["m1"].LabelIDs)

	if _, err := f.mutator.SetLabels(ctx, f.session, "m1", []string{models.LabelStarred}, true, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !f.messages.msgs["m1"].HasLabel(models.LabelStarred) {
		t.Fatal("label not added to mirror")
	}

	if _, err := f.mutator.SetLabels(ctx, f.session, "m1", []string{models.LabelStarred}, false, false); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if !slices.Equal(f.messages.msgs["m1"].LabelIDs, original) {
		t.Errorf("label set = %v, want original %v", f.messages.msgs["m1"].LabelIDs, original)
	}
}

func TestSetLabelsProviderFailureLeavesMirror(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox)
	f.gateway.fail = true

	_, err := f.mutator.SetLabels(context.Background(), f.session, "m1", []string{models.LabelStarred}, true, false)
	if err == nil {
		t.Fatal("expected provider error")
	}
	if f.messages.msgs["m1"].HasLabel(models.LabelStarred) {
		t.Error("mirror was updated despite provider failure")
	}
	if len(f.emitter.events) != 0 {
		t.Errorf("events emitted despite failure: %v", f.emitter.names())
	}
}

func TestSetLabelsUnknownMessageIsSoft(t *testing.T) {
	f := newFixture()

	result, err := f.mutator.SetLabels(context.Background(), f.session, "missing", []string{models.LabelStarred}, true, false)
	if err != nil {
		t.Fatalf("SetLabels: %v", err)
	}
	if result.Status != StatusNotFound {
		t.Errorf("status = %q, want %q", result.Status, StatusNotFound)
	}
	if len(f.gateway.calls) != 0 {
		t.Error("provider called for an unknown message")
	}
}

func TestSetLabelsImportantRelocatesThread(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox, models.LabelUnread)
	ctx := context.Background()

	result, err := f.mutator.SetLabels(ctx, f.session, "m1", []string{models.LabelImportant}, true, false)
	if err != nil {
		t.Fatalf("SetLabels: %v", err)
	}

	want := []string{realtime.EventMailDeleteThread, realtime.EventMailAddThreadImportant}
	if !slices.Equal(f.emitter.names(), want) {
		t.Errorf("events = %v, want %v", f.emitter.names(), want)
	}
	for _, e := range f.emitter.events {
		if e.subject != "sub-1" {
			t.Errorf("event addressed to %q, want sub-1", e.subject)
		}
	}
	if !slices.Contains(result.AppliedLabelIDs, models.LabelImportant) {
		t.Errorf("applied = %v, missing IMPORTANT", result.AppliedLabelIDs)
	}
	if result.ThreadSnapshot == nil || result.ThreadSnapshot.ThreadID != "t1" {
		t.Errorf("snapshot = %+v", result.ThreadSnapshot)
	}

	// Removing IMPORTANT relocates back the other way.
	f.emitter.events = nil
	if _, err := f.mutator.SetLabels(ctx, f.session, "m1", []string{models.LabelImportant}, false, false); err != nil {
		t.Fatalf("SetLabels remove: %v", err)
	}
	want = []string{realtime.EventMailDeleteThreadImportant, realtime.EventMailAddThread}
	if !slices.Equal(f.emitter.names(), want) {
		t.Errorf("events = %v, want %v", f.emitter.names(), want)
	}
}

func TestSetLabelsDetailEvent(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox)

	if _, err := f.mutator.SetLabels(context.Background(), f.session, "m1", []string{models.LabelStarred}, true, true); err != nil {
		t.Fatalf("SetLabels: %v", err)
	}
	if names := f.emitter.names(); len(names) != 1 || names[0] != realtime.EventMailDetailUpdate {
		t.Errorf("events = %v, want one mail_detail_update", names)
	}
}

func TestSetThreadStatusDoneRecordsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.mutator.SetThreadStatus(ctx, f.session, "t1", models.StatusDone)
	if err != nil {
		t.Fatalf("first done: %v", err)
	}
	if len(result.UnlockEvents) != 1 {
		t.Errorf("unlocks = %d, want 1", len(result.UnlockEvents))
	}

	result, err = f.mutator.SetThreadStatus(ctx, f.session, "t1", models.StatusDone)
	if err != nil {
		t.Fatalf("second done: %v", err)
	}
	if len(result.UnlockEvents) != 0 {
		t.Errorf("second call returned unlocks: %+v", result.UnlockEvents)
	}

	if len(f.interactions.recorded) != 1 {
		t.Errorf("interactions = %d, want 1", len(f.interactions.recorded))
	}
	if f.unlocker.calls != 1 {
		t.Errorf("unlock evaluations = %d, want 1", f.unlocker.calls)
	}
}

func TestSetThreadStatusEmitsRemovalFromDefaultView(t *testing.T) {
	f := newFixture()

	if _, err := f.mutator.SetThreadStatus(context.Background(), f.session, "t1", models.StatusTodo); err != nil {
		t.Fatalf("SetThreadStatus: %v", err)
	}
	if names := f.emitter.names(); len(names) != 1 || names[0] != realtime.EventMailDeleteThread {
		t.Errorf("events = %v, want one mail_delete_thread", names)
	}
	if f.threads.records["t1"].StatusInput != models.StatusTodo {
		t.Errorf("status = %q", f.threads.records["t1"].StatusInput)
	}
}

func TestSetThreadCategoryAndStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.mutator.SetThreadCategoryAndStatus(ctx, f.session, "t1", "Work-Related", models.StatusDone, false)
	if err != nil {
		t.Fatalf("SetThreadCategoryAndStatus: %v", err)
	}
	if len(result.UnlockEvents) != 1 {
		t.Errorf("unlocks = %d, want 1", len(result.UnlockEvents))
	}
	record := f.threads.records["t1"]
	if record.UserCategory != "Work-Related" || record.StatusInput != models.StatusDone {
		t.Errorf("record = %+v", record)
	}
	if names := f.emitter.names(); len(names) != 1 || names[0] != realtime.EventThreadUpdate {
		t.Errorf("events = %v, want one thread_update", names)
	}

	// With deletion set the thread also leaves the caller's view; the
	// interaction gate still fires only once.
	f.emitter.events = nil
	result, err = f.mutator.SetThreadCategoryAndStatus(ctx, f.session, "t1", "Work-Related", models.StatusDone, true)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(result.UnlockEvents) != 0 {
		t.Errorf("second call returned unlocks: %+v", result.UnlockEvents)
	}
	want := []string{realtime.EventThreadUpdate, realtime.EventMailDeleteThread}
	if !slices.Equal(f.emitter.names(), want) {
		t.Errorf("events = %v, want %v", f.emitter.names(), want)
	}
	if f.unlocker.calls != 1 {
		t.Errorf("unlock evaluations = %d, want 1", f.unlocker.calls)
	}
}

func TestSetThreadCategorySnapshotsInitial(t *testing.T) {
	f := newFixture()
	f.threads.records["t1"] = &models.Thread{ThreadID: "t1", Category: "Work"}

	if _, err := f.mutator.SetThreadCategory(context.Background(), f.session, "t1", "Personal"); err != nil {
		t.Fatalf("SetThreadCategory: %v", err)
	}

	record := f.threads.records["t1"]
	if record.UserCategory != "Personal" {
		t.Errorf("UserCategory = %q", record.UserCategory)
	}
	if record.InitialCategory != "Work" {
		t.Errorf("InitialCategory = %q, want the machine category", record.InitialCategory)
	}
	if names := f.emitter.names(); len(names) != 1 || names[0] != realtime.EventThreadUpdate {
		t.Errorf("events = %v, want one thread_update", names)
	}
}

func TestDeleteThread(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox)
	f.addMessage("m2", "t1", models.LabelSent)

	result, err := f.mutator.DeleteThread(context.Background(), f.session, "t1")
	if err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("status = %q", result.Status)
	}
	for _, id := range []string{"m1", "m2"} {
		if !slices.Equal(f.messages.msgs[id].LabelIDs, []string{models.LabelTrash}) {
			t.Errorf("%s labels = %v, want [TRASH]", id, f.messages.msgs[id].LabelIDs)
		}
	}
	want := []string{realtime.EventMailDeleteThread, realtime.EventMailDeleteThreadImportant}
	if !slices.Equal(f.emitter.names(), want) {
		t.Errorf("events = %v, want %v", f.emitter.names(), want)
	}
}

func TestDeleteThreadUnknownIsSoft(t *testing.T) {
	f := newFixture()

	result, err := f.mutator.DeleteThread(context.Background(), f.session, "missing")
	if err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if result.Status != StatusNotFound {
		t.Errorf("status = %q, want %q", result.Status, StatusNotFound)
	}
}

func TestMarkThreadRead(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox, models.LabelUnread)
	f.addMessage("m2", "t1", models.LabelInbox, models.LabelUnread)
	f.addMessage("m3", "t1", models.LabelInbox)

	result, err := f.mutator.MarkThreadRead(context.Background(), f.session, "m1")
	if err != nil {
		t.Fatalf("MarkThreadRead: %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("status = %q", result.Status)
	}
	for _, id := range []string{"m1", "m2"} {
		if f.messages.msgs[id].HasLabel(models.LabelUnread) {
			t.Errorf("%s still unread", id)
		}
	}
	if len(f.gateway.calls) != 2 {
		t.Errorf("provider calls = %d, want 2", len(f.gateway.calls))
	}
	for _, call := range f.gateway.calls {
		if !slices.Equal(call.remove, []string{models.LabelUnread}) {
			t.Errorf("provider remove = %v, want [UNREAD]", call.remove)
		}
	}
}

func TestMarkThreadReadNoUnread(t *testing.T) {
	f := newFixture()
	f.addMessage("m1", "t1", models.LabelInbox)

	result, err := f.mutator.MarkThreadRead(context.Background(), f.session, "m1")
	if err != nil {
		t.Fatalf("MarkThreadRead: %v", err)
	}
	if result.Status != StatusNoUnread {
		t.Errorf("status = %q, want %q", result.Status, StatusNoUnread)
	}
	if len(f.gateway.calls) != 0 {
		t.Error("provider called with nothing unread")
	}
}
