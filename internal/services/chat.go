package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventstaff-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// unknownUserName is the display name used when neither a company nor a
// staff profile resolves for a counterpart
const unknownUserName = "Unknown User"

// ErrEmptyMessage is returned by Send when the trimmed content is blank
var ErrEmptyMessage = errors.New("message content is empty")

// MessageStore is the row-level message access the aggregator needs
type MessageStore interface {
	Create(ctx context.Context, senderID, recipientID, content string) (*models.Message, error)
	ListByParticipant(ctx context.Context, userID string) ([]*models.Message, error)
	ListConversation(ctx context.Context, userID, contactID string) ([]*models.Message, error)
	MarkRead(ctx context.Context, ids []string) error
}

// NameDirectory resolves a user id to a display name, company path first
type NameDirectory interface {
	CompanyName(ctx context.Context, userID string) (name, avatarURL string, err error)
	StaffName(ctx context.Context, userID string) (name, avatarURL string, err error)
}

// PushNotifier delivers a push notification about a new message to a
// recipient with no live subscription
type PushNotifier interface {
	NotifyNewMessage(ctx context.Context, recipientID, senderName, preview string) error
}

// ChatService implements contact aggregation, thread loading, and message
// delivery for two-party conversations
type ChatService struct {
	messages MessageStore
	names    NameDirectory
	hub      *Hub
	notifier PushNotifier // optional
}

// NewChatService creates a new chat service
func NewChatService(messages MessageStore, names NameDirectory, hub *Hub, notifier PushNotifier) *ChatService {
	return &ChatService{
		messages: messages,
		names:    names,
		hub:      hub,
		notifier: notifier,
	}
}

// BuildContacts derives the user's contact list from the flat message table.
// Messages are fetched newest first; the first message seen per counterpart
// supplies the preview. Counterparts equal to the user itself are skipped,
// and a failed name lookup falls back to a label without aborting the rest
// of the list.
func (s *ChatService) BuildContacts(ctx context.Context, userID string) ([]*models.Contact, error) {
	if userID == "" {
		return nil, nil
	}

	msgs, err := s.messages.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}

	var contacts []*models.Contact
	seen := make(map[string]*models.Contact)

	for _, msg := range msgs {
		other := msg.SenderID
		if other == userID {
			other = msg.RecipientID
		}
		if other == userID {
			// self-chat guard
			continue
		}

		contact, ok := seen[other]
		if !ok {
			contact = &models.Contact{
				ID:      other,
				Preview: msg.Content,
			}
			s.resolveDisplayName(ctx, contact)
			seen[other] = contact
			contacts = append(contacts, contact)
		}

		if msg.RecipientID == userID && !msg.IsRead {
			contact.Unread++
		}
	}

	return contacts, nil
}

// resolveDisplayName fills in the contact's name and avatar, trying the
// company profile first, then the staff profile. Lookup failures only
// affect this one contact.
func (s *ChatService) resolveDisplayName(ctx context.Context, contact *models.Contact) {
	name, avatar, err := s.names.CompanyName(ctx, contact.ID)
	if err != nil {
		log.Warn().Err(err).Str("contact_id", contact.ID).Msg("Company name lookup failed")
	} else if name != "" {
		contact.Name = name
		contact.CompanyName = name
		contact.AvatarURL = avatar
		return
	}

	name, avatar, err = s.names.StaffName(ctx, contact.ID)
	if err != nil {
		log.Warn().Err(err).Str("contact_id", contact.ID).Msg("Staff name lookup failed")
	} else if name != "" {
		contact.Name = name
		contact.AvatarURL = avatar
		return
	}

	contact.Name = unknownUserName
}

// LoadConversation fetches the two-party thread oldest first, marks every
// unread message addressed to the user as read in one batch, and annotates
// each message with IsOwn. Re-loading an already-read thread issues no
// update call.
func (s *ChatService) LoadConversation(ctx context.Context, userID, contactID string) ([]models.ConversationMessage, error) {
	if userID == "" || contactID == "" {
		return nil, nil
	}

	msgs, err := s.messages.ListConversation(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var unreadIDs []string
	for _, msg := range msgs {
		if msg.RecipientID == userID && !msg.IsRead {
			unreadIDs = append(unreadIDs, msg.ID)
		}
	}
	if len(unreadIDs) > 0 {
		if err := s.messages.MarkRead(ctx, unreadIDs); err != nil {
			return nil, fmt.Errorf("failed to mark conversation read: %w", err)
		}
	}

	conversation := make([]models.ConversationMessage, 0, len(msgs))
	for _, msg := range msgs {
		m := *msg
		if msg.RecipientID == userID {
			m.IsRead = true
		}
		conversation = append(conversation, models.ConversationMessage{
			Message: m,
			IsOwn:   msg.SenderID == userID,
		})
	}

	return conversation, nil
}

// Send inserts a message and fans it out: live subscribers of the recipient
// get it through the hub, and a recipient with no live subscription gets a
// push notification. Returns ErrEmptyMessage when the trimmed content is
// blank; nothing is inserted in that case.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == "" || recipientID == "" {
		return nil, errors.New("sender and recipient are required")
	}

	msg, err := s.messages.Create(ctx, senderID, recipientID, content)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.hub.Publish(msg)

	if s.notifier != nil && !s.hub.HasSubscriber(recipientID) {
		sender := &models.Contact{ID: senderID}
		s.resolveDisplayName(ctx, sender)
		go func() {
			if err := s.notifier.NotifyNewMessage(context.Background(), recipientID, sender.Name, msg.Content); err != nil {
				log.Warn().Err(err).Str("recipient_id", recipientID).Msg("Push notification failed")
			}
		}()
	}

	return msg, nil
}

// markReadAsync flips a single pushed message to read without blocking the
// caller. Used when a message arrives into an already-open thread.
func (s *ChatService) markReadAsync(msgID string) {
	go func() {
		if err := s.messages.MarkRead(context.Background(), []string{msgID}); err != nil {
			log.Warn().Err(err).Str("message_id", msgID).Msg("Failed to mark pushed message read")
		}
	}()
}
