package services

import (
	"sync"

	"eventstaff-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// subscriptionBuffer is the per-subscriber queue depth. A subscriber that
// falls further behind than this loses events; the next contact reload
// resynchronizes it.
const subscriptionBuffer = 64

// Subscription is a live feed of messages inserted for one recipient.
// Cancel must be called when the consumer goes away; a leaked subscription
// keeps receiving events until the buffer fills.
type Subscription struct {
	C chan *models.Message

	id     uint64
	userID string
	hub    *Hub
	once   sync.Once
}

// Cancel closes the subscription and removes it from the hub
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.C)
	})
}

// Hub fans newly inserted messages out to per-recipient subscriptions.
// It is the realtime half of the data layer: ChatService publishes here
// after every successful insert.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	nextID uint64
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string][]*Subscription),
	}
}

// Subscribe opens a feed of messages addressed to userID, delivered in
// insert order
func (h *Hub) Subscribe(userID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		C:      make(chan *models.Message, subscriptionBuffer),
		id:     h.nextID,
		userID: userID,
		hub:    h,
	}
	h.subs[userID] = append(h.subs[userID], sub)

	log.Debug().Str("user_id", userID).Msg("Realtime subscription opened")

	return sub
}

// Publish delivers a freshly inserted message to every subscription of its
// recipient. A full subscriber buffer drops the event for that subscriber.
func (h *Hub) Publish(msg *models.Message) {
	// Sends stay under the read lock so Cancel (which takes the write
	// lock before closing the channel) cannot race a delivery.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[msg.RecipientID] {
		select {
		case sub.C <- msg:
		default:
			log.Warn().
				Str("user_id", msg.RecipientID).
				Str("message_id", msg.ID).
				Msg("Subscriber buffer full, dropping event")
		}
	}
}

// HasSubscriber reports whether the user has at least one live subscription
func (h *Hub) HasSubscriber(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.userID]
	for i, s := range subs {
		if s.id == sub.id {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.subs, sub.userID)
	} else {
		h.subs[sub.userID] = subs
	}

	log.Debug().Str("user_id", sub.userID).Msg("Realtime subscription closed")
}
