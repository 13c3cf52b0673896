package services

import (
	"testing"
	"time"

	"eventstaff-backend/internal/models"
)

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("me")
	defer sub.Cancel()

	for _, id := range []string{"m1", "m2", "m3"} {
		hub.Publish(&models.Message{ID: id, SenderID: "alice", RecipientID: "me"})
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		select {
		case msg := <-sub.C:
			if msg.ID != want {
				t.Errorf("got %s, want %s", msg.ID, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestHubScopesToRecipient(t *testing.T) {
	hub := NewHub()
	mine := hub.Subscribe("me")
	defer mine.Cancel()
	other := hub.Subscribe("other")
	defer other.Cancel()

	hub.Publish(&models.Message{ID: "m1", SenderID: "alice", RecipientID: "other"})

	select {
	case msg := <-mine.C:
		t.Fatalf("received a message addressed to someone else: %s", msg.ID)
	default:
	}
	select {
	case <-other.C:
	case <-time.After(time.Second):
		t.Fatal("recipient did not receive the message")
	}
}

func TestHubCancel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("me")

	if !hub.HasSubscriber("me") {
		t.Fatal("expected a live subscriber")
	}
	sub.Cancel()
	if hub.HasSubscriber("me") {
		t.Fatal("cancel must remove the subscription")
	}

	// Cancel is idempotent and publishing afterwards must not panic
	sub.Cancel()
	hub.Publish(&models.Message{ID: "m1", RecipientID: "me"})

	if _, ok := <-sub.C; ok {
		t.Fatal("channel must be closed after cancel")
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("me")
	defer sub.Cancel()

	for i := 0; i < subscriptionBuffer+5; i++ {
		hub.Publish(&models.Message{ID: "m", RecipientID: "me"})
	}
	if got := len(sub.C); got != subscriptionBuffer {
		t.Errorf("buffered %d events, want %d", got, subscriptionBuffer)
	}
}
