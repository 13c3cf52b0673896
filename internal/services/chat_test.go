package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"eventstaff-backend/internal/models"
)

type fakeMessageStore struct {
	mu        sync.Mutex
	rows      []*models.Message
	markCalls [][]string
	markCh    chan []string
	createErr error
	listErr   error
}

func (f *fakeMessageStore) add(id, sender, recipient, content string, at time.Time, read bool) {
	f.rows = append(f.rows, &models.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		IsRead:      read,
		CreatedAt:   at,
	})
}

func (f *fakeMessageStore) Create(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	msg := &models.Message{
		ID:          fmt.Sprintf("m%d", len(f.rows)+1),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	f.rows = append(f.rows, msg)
	return msg, nil
}

func (f *fakeMessageStore) ListByParticipant(ctx context.Context, userID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Message
	for _, m := range f.rows {
		if m.SenderID == userID || m.RecipientID == userID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessageStore) ListConversation(ctx context.Context, userID, contactID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.rows {
		if (m.SenderID == userID && m.RecipientID == contactID) ||
			(m.SenderID == contactID && m.RecipientID == userID) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, ids []string) error {
	f.mu.Lock()
	f.markCalls = append(f.markCalls, ids)
	for _, m := range f.rows {
		for _, id := range ids {
			if m.ID == id {
				m.IsRead = true
			}
		}
	}
	ch := f.markCh
	f.mu.Unlock()
	if ch != nil {
		ch <- ids
	}
	return nil
}

func (f *fakeMessageStore) markCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markCalls)
}

func (f *fakeMessageStore) isRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id {
			return m.IsRead
		}
	}
	return false
}

type fakeDirectory struct {
	companies  map[string]string
	staff      map[string]string
	companyErr error
	staffErr   error
}

func (f *fakeDirectory) CompanyName(ctx context.Context, userID string) (string, string, error) {
	if f.companyErr != nil {
		return "", "", f.companyErr
	}
	return f.companies[userID], "", nil
}

func (f *fakeDirectory) StaffName(ctx context.Context, userID string) (string, string, error) {
	if f.staffErr != nil {
		return "", "", f.staffErr
	}
	return f.staff[userID], "", nil
}

func newTestChat(store *fakeMessageStore, dir *fakeDirectory) *ChatService {
	if dir == nil {
		dir = &fakeDirectory{}
	}
	return NewChatService(store, dir, NewHub(), nil)
}

func ts(minute int) time.Time {
	return time.Date(2026, 6, 1, 10, minute, 0, 0, time.UTC)
}

func TestBuildContactsExcludesSelf(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "me", "me", "note to self", ts(1), false)
	store.add("m2", "alice", "me", "hi", ts(2), false)

	contacts, err := newTestChat(store, nil).BuildContacts(context.Background(), "me")
	if err != nil {
		t.Fatalf("BuildContacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(contacts))
	}
	for _, c := range contacts {
		if c.ID == "me" {
			t.Error("contact list must never contain the user itself")
		}
	}
}

func TestBuildContactsOrderPreviewUnread(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "me", "alice", "first to alice", ts(1), true)
	store.add("m2", "alice", "me", "alice one", ts(2), false)
	store.add("m3", "bob", "me", "bob one", ts(3), false)
	store.add("m4", "alice", "me", "alice latest", ts(4), false)

	dir := &fakeDirectory{
		companies: map[string]string{"alice": "Alice Events Ltd"},
		staff:     map[string]string{"bob": "Bob Porter"},
	}

	contacts, err := newTestChat(store, dir).BuildContacts(context.Background(), "me")
	if err != nil {
		t.Fatalf("BuildContacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}

	// most recently active first: alice's m4 is newest overall
	if contacts[0].ID != "alice" || contacts[1].ID != "bob" {
		t.Fatalf("wrong order: %s, %s", contacts[0].ID, contacts[1].ID)
	}
	if contacts[0].Preview != "alice latest" {
		t.Errorf("preview must be the most recent message, got %q", contacts[0].Preview)
	}
	if contacts[0].Unread != 2 {
		t.Errorf("alice unread = %d, want 2", contacts[0].Unread)
	}
	if contacts[1].Unread != 1 {
		t.Errorf("bob unread = %d, want 1", contacts[1].Unread)
	}
	if contacts[0].Name != "Alice Events Ltd" || contacts[0].CompanyName != "Alice Events Ltd" {
		t.Errorf("company name resolution failed: %+v", contacts[0])
	}
	if contacts[1].Name != "Bob Porter" || contacts[1].CompanyName != "" {
		t.Errorf("staff name resolution failed: %+v", contacts[1])
	}
}

func TestBuildContactsNameFallback(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "ghost", "me", "who am I", ts(1), false)

	contacts, err := newTestChat(store, &fakeDirectory{}).BuildContacts(context.Background(), "me")
	if err != nil {
		t.Fatalf("BuildContacts: %v", err)
	}
	if contacts[0].Name != "Unknown User" {
		t.Errorf("expected fallback name, got %q", contacts[0].Name)
	}
}

func TestBuildContactsLookupFailureIsolated(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "hi", ts(2), false)
	store.add("m2", "bob", "me", "yo", ts(1), false)

	// every lookup errors; both contacts must still be built
	dir := &fakeDirectory{
		companyErr: errors.New("directory down"),
		staffErr:   errors.New("directory down"),
	}
	contacts, err := newTestChat(store, dir).BuildContacts(context.Background(), "me")
	if err != nil {
		t.Fatalf("lookup failure must not abort the list: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts despite lookup failures, got %d", len(contacts))
	}
	for _, c := range contacts {
		if c.Name != "Unknown User" {
			t.Errorf("contact %s: expected fallback name, got %q", c.ID, c.Name)
		}
	}
}

func TestLoadConversationMarksReadOnce(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "me", "alice", "sent by me", ts(1), false)
	store.add("m2", "alice", "me", "unread one", ts(2), false)
	store.add("m3", "alice", "me", "unread two", ts(3), false)
	store.add("m4", "alice", "me", "already read", ts(4), true)

	svc := newTestChat(store, nil)

	conv, err := svc.LoadConversation(context.Background(), "me", "alice")
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(conv) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(conv))
	}

	// ascending order with IsOwn annotation
	if !conv[0].IsOwn || conv[1].IsOwn || conv[2].IsOwn || conv[3].IsOwn {
		t.Error("IsOwn annotation wrong")
	}
	if conv[0].ID != "m1" || conv[3].ID != "m4" {
		t.Errorf("conversation not in ascending order: %s .. %s", conv[0].ID, conv[3].ID)
	}

	// exactly the unread-and-addressed-to-me subset was marked
	if store.markCallCount() != 1 {
		t.Fatalf("expected exactly one mark-read call, got %d", store.markCallCount())
	}
	if got := store.markCalls[0]; len(got) != 2 || got[0] != "m2" || got[1] != "m3" {
		t.Errorf("wrong ids marked read: %v", got)
	}
	if !store.isRead("m2") || !store.isRead("m3") {
		t.Error("unread messages must be persisted as read")
	}

	// second load with nothing new: no additional update call
	if _, err := svc.LoadConversation(context.Background(), "me", "alice"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if store.markCallCount() != 1 {
		t.Errorf("reload must be idempotent, got %d mark-read calls", store.markCallCount())
	}
}

func TestSendTrimsAndRejectsBlank(t *testing.T) {
	store := &fakeMessageStore{}
	svc := newTestChat(store, nil)

	for _, content := range []string{"", "   ", "\n\t "} {
		if _, err := svc.Send(context.Background(), "me", "alice", content); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q): expected ErrEmptyMessage, got %v", content, err)
		}
	}
	if len(store.rows) != 0 {
		t.Fatal("blank sends must not insert")
	}

	msg, err := svc.Send(context.Background(), "me", "alice", "  hello  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content must be trimmed, got %q", msg.Content)
	}
	if msg.IsRead {
		t.Error("new message must start unread")
	}
}

func TestSessionSendBlankIsNoOp(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "hi", ts(1), false)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}

	msg, err := sess.SendMessage(context.Background(), "   ")
	if err != nil {
		t.Fatalf("blank send must not error: %v", err)
	}
	if msg != nil {
		t.Fatal("blank send must return nil")
	}
	if len(store.rows) != 1 {
		t.Fatal("blank send must not insert")
	}
}

func TestSessionSelectsFirstContact(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "old", ts(1), false)
	store.add("m2", "bob", "me", "new", ts(2), false)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	if got := sess.SelectedContactID(); got != "bob" {
		t.Errorf("first contact (most recently active) must be selected, got %q", got)
	}
}

func TestSessionLoadConversationZeroesUnread(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "one", ts(1), false)
	store.add("m2", "alice", "me", "two", ts(2), false)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	if sess.Contacts()[0].Unread != 2 {
		t.Fatalf("setup: expected 2 unread, got %d", sess.Contacts()[0].Unread)
	}

	if _, err := sess.LoadConversation(context.Background(), "alice"); err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if got := sess.Contacts()[0].Unread; got != 0 {
		t.Errorf("unread after opening thread = %d, want 0", got)
	}
}

func TestSessionIncomingToOpenThread(t *testing.T) {
	store := &fakeMessageStore{markCh: make(chan []string, 4)}
	store.add("m1", "alice", "me", "hi", ts(1), true)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	if _, err := sess.LoadConversation(context.Background(), "alice"); err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}

	// two live pushes from the open counterpart, in order
	sess.handleIncoming(&models.Message{ID: "p1", SenderID: "alice", RecipientID: "me", Content: "first", CreatedAt: ts(5)})
	sess.handleIncoming(&models.Message{ID: "p2", SenderID: "alice", RecipientID: "me", Content: "second", CreatedAt: ts(6)})

	conv := sess.Conversation("alice")
	if len(conv) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(conv))
	}
	if conv[1].ID != "p1" || conv[2].ID != "p2" {
		t.Errorf("pushed messages out of order: %s, %s", conv[1].ID, conv[2].ID)
	}
	if conv[1].IsOwn || conv[2].IsOwn {
		t.Error("pushed messages must not be own")
	}
	if got := sess.Contacts()[0].Unread; got != 0 {
		t.Errorf("unread must stay 0 for the open thread, got %d", got)
	}

	// each push triggers its own read-mark
	for _, want := range []string{"p1", "p2"} {
		select {
		case ids := <-store.markCh:
			if len(ids) != 1 || ids[0] != want {
				t.Errorf("expected mark-read of %s, got %v", want, ids)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for mark-read of %s", want)
		}
	}
}

func TestSessionIncomingBumpsUnreadContact(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "hi", ts(2), true)
	store.add("m2", "bob", "me", "yo", ts(1), true)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	// alice is selected (most recent); a push from bob goes to the counter path
	sess.handleIncoming(&models.Message{ID: "p1", SenderID: "bob", RecipientID: "me", Content: "ping", CreatedAt: ts(9)})

	var bob *models.Contact
	for _, c := range sess.Contacts() {
		if c.ID == "bob" {
			bob = c
		}
	}
	if bob == nil {
		t.Fatal("bob missing from contacts")
	}
	if bob.Unread != 1 {
		t.Errorf("bob unread = %d, want 1", bob.Unread)
	}
	if bob.Preview != "ping" {
		t.Errorf("bob preview = %q, want the pushed content", bob.Preview)
	}
	if store.markCallCount() != 0 {
		t.Error("a push outside the open thread must not be marked read")
	}
}

func TestSessionIncomingUnknownSenderDropped(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "hi", ts(1), true)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}

	sess.handleIncoming(&models.Message{ID: "p1", SenderID: "stranger", RecipientID: "me", Content: "hello?", CreatedAt: ts(9)})

	if len(sess.Contacts()) != 1 {
		t.Error("no contact may be synthesized for an unknown sender")
	}

	// the next contact reload picks the stranger up
	store.mu.Lock()
	store.rows = append(store.rows, &models.Message{
		ID: "p1", SenderID: "stranger", RecipientID: "me", Content: "hello?", CreatedAt: ts(9),
	})
	store.mu.Unlock()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(sess.Contacts()) != 2 {
		t.Errorf("expected stranger after reload, got %d contacts", len(sess.Contacts()))
	}
}

func TestSessionSendAppendsAndUpdatesPreview(t *testing.T) {
	store := &fakeMessageStore{}
	store.add("m1", "alice", "me", "hi", ts(1), true)
	svc := newTestChat(store, nil)

	sess := svc.NewSession("me")
	defer sess.Close()
	if _, err := sess.LoadContacts(context.Background()); err != nil {
		t.Fatalf("LoadContacts: %v", err)
	}
	if _, err := sess.LoadConversation(context.Background(), "alice"); err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}

	msg, err := sess.SendMessage(context.Background(), "see you at 8")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg == nil || !msg.IsOwn {
		t.Fatal("sent message must be annotated IsOwn")
	}

	conv := sess.Conversation("alice")
	if conv[len(conv)-1].Content != "see you at 8" {
		t.Error("sent message must be appended to the open thread")
	}
	if got := sess.Contacts()[0].Preview; got != "see you at 8" {
		t.Errorf("preview = %q, want the sent content", got)
	}
}
