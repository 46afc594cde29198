package push

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/anonto42/agara/backend/internal/models"
)

const (
	defaultTTL     = 24 * time.Hour
	defaultTimeout = 10 * time.Second
)

// WebPushSender delivers to browser endpoints using VAPID-signed Web Push requests.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	client     webpush.HTTPClient
}

// NewWebPushSender creates a sender from VAPID configuration.
func NewWebPushSender(cfg Config) *WebPushSender {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WebPushSender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		// webpush-go prefixes mailto: for bare addresses
		subscriber: strings.TrimPrefix(cfg.Subject, "mailto:"),
		ttl:        int(ttl.Seconds()),
		client:     &http.Client{Timeout: timeout},
	}
}

// Send encrypts the payload for the subscription and posts it to the endpoint.
func (s *WebPushSender) Send(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	data, err := payload.Encode()
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         webpush.UrgencyNormal,
		Topic:           topic(payload.Tag),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

// topic returns the tag when it is a valid Topic header value (at most 32 URL-safe base64 characters).
// Other tags still collapse on the device through the notification tag.
func topic(tag string) string {
	if tag == "" || len(tag) > 32 {
		return ""
	}
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return ""
		}
	}
	return tag
}

// GenerateVAPIDKeys generates a new VAPID key pair, URL-safe base64 encoded.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
