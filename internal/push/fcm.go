package push

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/agara/backend/internal/models"
)

// FCMSender delivers to native app registrations through Firebase Cloud Messaging.
// The subscription endpoint holds the FCM registration token.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	if _, err := s.client.Send(ctx, fcmMessage(sub, payload)); err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", ErrSubscriptionGone, err)
		}
		return fmt.Errorf("send fcm: %w", err)
	}
	return nil
}

func fcmMessage(sub *models.PushSubscription, payload Payload) *messaging.Message {
	m := payload.Message()
	msg := &messaging.Message{
		Token: sub.Endpoint,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Data: map[string]string{
			"url": m.URL,
		},
	}
	if m.Tag != "" {
		msg.Data["tag"] = m.Tag
		msg.Android = &messaging.AndroidConfig{
			CollapseKey:  m.Tag,
			Notification: &messaging.AndroidNotification{Tag: m.Tag},
		}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-collapse-id": m.Tag},
		}
	}
	return msg
}
