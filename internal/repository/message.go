package repository

import (
	"context"
	"fmt"
	"time"

	"eventstaff-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for direct messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message and returns the persisted row
func (r *MessageRepository) Create(ctx context.Context, senderID, recipientID, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, sender_id, recipient_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id, sender_id, recipient_id, content, is_read, created_at
	`
	var msg models.Message
	err := r.db.QueryRow(ctx, query, uuid.New().String(), senderID, recipientID, content, time.Now()).Scan(
		&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

// ListByParticipant retrieves every message sent or received by the user,
// newest first. Contact aggregation relies on this descending order for
// preview selection.
func (r *MessageRepository) ListByParticipant(ctx context.Context, userID string) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, is_read, created_at
		FROM messages
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// ListConversation retrieves the two-party thread between userID and
// contactID, oldest first
func (r *MessageRepository) ListConversation(ctx context.Context, userID, contactID string) ([]*models.Message, error) {
	query := `
		SELECT id, sender_id, recipient_id, content, is_read, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content, &msg.IsRead, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// MarkRead flips is_read to true for the given message ids
func (r *MessageRepository) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE messages SET is_read = TRUE WHERE id = ANY($1)`
	_, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
