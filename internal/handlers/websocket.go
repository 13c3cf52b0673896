package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"eventstaff-backend/internal/models"
	"eventstaff-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients connect from app schemes
	},
}

// WSFrame is the wire format exchanged over the chat WebSocket
type WSFrame struct {
	Type      string                       `json:"type"`
	ContactID string                       `json:"contact_id,omitempty"`
	Content   string                       `json:"content,omitempty"`
	Contacts  []*models.Contact            `json:"contacts,omitempty"`
	Messages  []models.ConversationMessage `json:"messages,omitempty"`
	Message   *models.ConversationMessage  `json:"message,omitempty"`
	Contact   *models.Contact              `json:"contact,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

// WebSocketHandler serves the live chat connection
type WebSocketHandler struct {
	chatService *services.ChatService
	userService *services.UserService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(chatService *services.ChatService, userService *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		userService: userService,
	}
}

// wsClient serializes writes to one connection; frames arrive from both
// the read loop and the session event pump
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(frame WSFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// HandleWebSocket handles GET /ws. The client authenticates with a token
// query parameter, receives its contact list, then exchanges frames:
// select_contact, send_message, and load_contacts inbound; contacts,
// conversation, sent, message, contact, and error outbound.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}

	session := h.chatService.NewSession(userID)
	defer session.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go session.Run(ctx)

	// Forward session events to the socket
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-session.Events():
				frame := WSFrame{Type: ev.Type, Message: ev.Message, Contact: ev.Contact}
				if err := client.write(frame); err != nil {
					log.Debug().Err(err).Str("user_id", userID).Msg("Failed to forward session event")
					return
				}
			}
		}
	}()

	contacts, err := session.LoadContacts(ctx)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load contacts")
		client.write(WSFrame{Type: "error", Error: "Failed to load contacts"})
	} else {
		client.write(WSFrame{Type: "contacts", Contacts: contacts})
	}

	log.Info().Str("user_id", userID).Msg("Chat WebSocket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var frame WSFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			client.write(WSFrame{Type: "error", Error: "Invalid frame format"})
			continue
		}

		if err := h.handleFrame(ctx, client, session, frame); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("type", frame.Type).Msg("Failed to handle frame")
			client.write(WSFrame{Type: "error", Error: "Something went wrong"})
		}
	}

	log.Info().Str("user_id", userID).Msg("Chat WebSocket disconnected")
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, client *wsClient, session *services.Session, frame WSFrame) error {
	switch frame.Type {
	case "select_contact":
		if frame.ContactID == "" {
			return client.write(WSFrame{Type: "error", Error: "contact_id is required"})
		}
		conversation, err := session.LoadConversation(ctx, frame.ContactID)
		if err != nil {
			return err
		}
		return client.write(WSFrame{
			Type:      "conversation",
			ContactID: frame.ContactID,
			Messages:  conversation,
		})

	case "send_message":
		msg, err := session.SendMessage(ctx, frame.Content)
		if err != nil {
			return err
		}
		if msg == nil {
			// blank content or nothing selected; silently ignored
			return nil
		}
		return client.write(WSFrame{Type: "sent", Message: msg})

	case "load_contacts":
		contacts, err := session.LoadContacts(ctx)
		if err != nil {
			return err
		}
		return client.write(WSFrame{Type: "contacts", Contacts: contacts})

	default:
		return client.write(WSFrame{Type: "error", Error: "Unknown frame type"})
	}
}
