package services

import (
	"context"
	"fmt"

	"eventstaff-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
)

// UserStore is the account lookup the notifier needs to find push tokens
type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// APNSNotifier delivers new-message alerts over Apple Push Notification
// service to recipients who are not connected to the live feed
type APNSNotifier struct {
	client *apns2.Client
	topic  string
	users  UserStore
}

// NewAPNSNotifier creates a notifier from a p12 certificate file
func NewAPNSNotifier(certFile, certPass, topic string, sandbox bool, users UserStore) (*APNSNotifier, error) {
	cert, err := certificate.FromP12File(certFile, certPass)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return &APNSNotifier{
		client: client,
		topic:  topic,
		users:  users,
	}, nil
}

// NotifyNewMessage pushes a new-message alert to the recipient's device.
// A recipient without a registered push token is skipped silently.
func (n *APNSNotifier) NotifyNewMessage(ctx context.Context, recipientID, senderName, preview string) error {
	user, err := n.users.GetByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to look up recipient: %w", err)
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return nil
	}

	notification := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle(senderName).
			AlertBody(preview).
			Sound("default"),
	}

	res, err := n.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push rejected: %s", res.Reason)
	}
	return nil
}
