package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"eventstaff-backend/internal/middleware"
	"eventstaff-backend/internal/models"
	"eventstaff-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// SendMessageRequest represents a send message request body
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// GetContacts handles GET /api/v1/chat/contacts
func (h *ChatHandler) GetContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	contacts, err := h.chatService.BuildContacts(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to build contacts")
		respondError(w, "Failed to load contacts", http.StatusInternalServerError)
		return
	}
	if contacts == nil {
		contacts = []*models.Contact{}
	}

	respondJSON(w, map[string]interface{}{
		"contacts": contacts,
	}, http.StatusOK)
}

// GetConversation handles GET /api/v1/chat/conversations/{contactID}.
// Loading a conversation marks its unread portion read.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	contactID := chi.URLParam(r, "contactID")

	if contactID == "" {
		respondError(w, "contact id is required", http.StatusBadRequest)
		return
	}

	conversation, err := h.chatService.LoadConversation(r.Context(), userID, contactID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("contact_id", contactID).
			Msg("Failed to load conversation")
		respondError(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}
	if conversation == nil {
		conversation = []models.ConversationMessage{}
	}

	respondJSON(w, map[string]interface{}{
		"messages": conversation,
	}, http.StatusOK)
}

// SendMessage handles POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		respondError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Send(r.Context(), userID, req.RecipientID, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			respondError(w, "Message content is required", http.StatusBadRequest)
			return
		}
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("recipient_id", req.RecipientID).
			Msg("Failed to send message")
		respondError(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	respondJSON(w, msg, http.StatusCreated)
}
