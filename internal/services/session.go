package services

import (
	"context"
	"errors"
	"sync"

	"eventstaff-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// sessionEventBuffer bounds the outbound event queue toward the client
const sessionEventBuffer = 16

// SessionEvent is what a live chat session emits toward its client
type SessionEvent struct {
	Type    string                      `json:"type"` // "message" or "contact"
	Message *models.ConversationMessage `json:"message,omitempty"`
	Contact *models.Contact             `json:"contact,omitempty"`
}

// Session holds one authenticated user's in-memory chat state: the contact
// list in most-recently-active order, loaded conversation threads keyed by
// counterpart id, and the live subscription that feeds new messages in.
// All mutation happens under one mutex; incoming events are drained from
// the subscription channel by Run rather than delivered via callback.
type Session struct {
	svc    *ChatService
	userID string
	sub    *Subscription
	events chan SessionEvent

	mu            sync.Mutex
	contacts      []*models.Contact
	conversations map[string][]models.ConversationMessage
	selectedID    string
	contactsGen   uint64
	convGen       map[string]uint64
	closed        bool
}

// NewSession opens a chat session for the user and subscribes it to the
// live message feed. Close must be called when the client goes away.
func (s *ChatService) NewSession(userID string) *Session {
	return &Session{
		svc:           s,
		userID:        userID,
		sub:           s.hub.Subscribe(userID),
		events:        make(chan SessionEvent, sessionEventBuffer),
		conversations: make(map[string][]models.ConversationMessage),
		convGen:       make(map[string]uint64),
	}
}

// Events is the feed of session updates the client should render
func (s *Session) Events() <-chan SessionEvent {
	return s.events
}

// Run drains the live subscription until the context ends or the session
// is closed
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.sub.C:
			if !ok {
				return
			}
			s.handleIncoming(msg)
		}
	}
}

// Close cancels the live subscription. Leaving it open past the client's
// lifetime is a leak.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.sub.Cancel()
}

// LoadContacts rebuilds the contact list. If no contact is selected yet,
// the first (most recently active) one becomes selected. A load that is
// overtaken by a newer one does not overwrite session state.
func (s *Session) LoadContacts(ctx context.Context) ([]*models.Contact, error) {
	if s.userID == "" {
		return nil, nil
	}

	s.mu.Lock()
	s.contactsGen++
	gen := s.contactsGen
	s.mu.Unlock()

	contacts, err := s.svc.BuildContacts(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.contactsGen {
		// a newer load owns the state now
		return contacts, nil
	}
	s.contacts = contacts
	if s.selectedID == "" && len(contacts) > 0 {
		s.selectedID = contacts[0].ID
	}
	return contacts, nil
}

// LoadConversation opens the thread with the given contact: fetches it,
// marks the unread portion read, zeroes the contact's unread counter, and
// makes the contact the selected one.
func (s *Session) LoadConversation(ctx context.Context, contactID string) ([]models.ConversationMessage, error) {
	if s.userID == "" || contactID == "" {
		return nil, nil
	}

	s.mu.Lock()
	s.convGen[contactID]++
	gen := s.convGen[contactID]
	s.mu.Unlock()

	conversation, err := s.svc.LoadConversation(ctx, s.userID, contactID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.convGen[contactID] {
		return conversation, nil
	}
	s.conversations[contactID] = conversation
	s.selectedID = contactID
	if contact := s.findContact(contactID); contact != nil {
		contact.Unread = 0
	}
	return conversation, nil
}

// SendMessage sends the trimmed content to the selected contact. Blank
// content, a missing selection, or a closed session is a no-op returning
// nil, matching a UI send button that silently does nothing.
func (s *Session) SendMessage(ctx context.Context, content string) (*models.ConversationMessage, error) {
	s.mu.Lock()
	recipientID := s.selectedID
	closed := s.closed
	s.mu.Unlock()

	if closed || s.userID == "" || recipientID == "" {
		return nil, nil
	}

	msg, err := s.svc.Send(ctx, s.userID, recipientID, content)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return nil, nil
		}
		return nil, err
	}

	annotated := models.ConversationMessage{Message: *msg, IsOwn: true}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[recipientID] = append(s.conversations[recipientID], annotated)
	if contact := s.findContact(recipientID); contact != nil {
		contact.Preview = msg.Content
	}
	return &annotated, nil
}

// Contacts returns a snapshot of the current contact list
func (s *Session) Contacts() []*models.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Contact, len(s.contacts))
	for i, c := range s.contacts {
		copied := *c
		out[i] = &copied
	}
	return out
}

// Conversation returns the loaded thread for a contact, if any
func (s *Session) Conversation(contactID string) []models.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversationMessage(nil), s.conversations[contactID]...)
}

// SelectedContactID returns the currently selected counterpart
func (s *Session) SelectedContactID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// handleIncoming reconciles one pushed message into session state. A
// message from the open thread is appended and marked read without
// touching the unread counter; one from any other known contact bumps
// that contact's unread and preview; one from an unknown sender is
// dropped until the next contact reload.
func (s *Session) handleIncoming(msg *models.Message) {
	s.mu.Lock()

	if msg.SenderID == s.selectedID {
		annotated := models.ConversationMessage{Message: *msg, IsOwn: false}
		annotated.IsRead = true
		s.conversations[msg.SenderID] = append(s.conversations[msg.SenderID], annotated)
		s.mu.Unlock()

		s.svc.markReadAsync(msg.ID)
		s.emit(SessionEvent{Type: "message", Message: &annotated})
		return
	}

	contact := s.findContact(msg.SenderID)
	if contact == nil {
		s.mu.Unlock()
		log.Debug().
			Str("sender_id", msg.SenderID).
			Str("message_id", msg.ID).
			Msg("Pushed message from unknown sender dropped")
		return
	}
	contact.Unread++
	contact.Preview = msg.Content
	updated := *contact
	s.mu.Unlock()

	s.emit(SessionEvent{Type: "contact", Contact: &updated})
}

// findContact returns the contact with the given id. Caller holds s.mu.
func (s *Session) findContact(id string) *models.Contact {
	for _, c := range s.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Session) emit(ev SessionEvent) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("user_id", s.userID).Str("type", ev.Type).Msg("Session event buffer full, dropping event")
	}
}
