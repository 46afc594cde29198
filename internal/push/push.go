package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anonto42/agara/backend/internal/agent"
	"github.com/anonto42/agara/backend/internal/models"
)

var (
	// ErrSubscriptionGone is returned when the push network reports the endpoint as permanently
	// invalid (404 Not Found / 410 Gone, or an unregistered FCM token).
	ErrSubscriptionGone = errors.New("push subscription gone")

	// ErrNotConfigured is returned when no sender is configured for a subscription's platform.
	ErrNotConfigured = errors.New("push delivery not configured")

	// ErrInvalidRequest is returned for a missing recipient or payload.
	ErrInvalidRequest = errors.New("userId and payload are required")
)

// Payload is the message delivered to every endpoint of a recipient.
type Payload struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Message converts the payload into the agent's wire format with defaults applied.
func (p Payload) Message() agent.Message {
	return agent.Message{
		Title: p.Title,
		Body:  p.Body,
		Icon:  p.Icon,
		URL:   p.URL,
		Tag:   p.Tag,
	}.WithDefaults()
}

// Encode returns the JSON body sent through the push network.
func (p Payload) Encode() ([]byte, error) {
	data, err := json.Marshal(p.Message())
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// Config holds VAPID and delivery configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             time.Duration
	Timeout         time.Duration
	Concurrency     int
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload Payload) error
}

// StatusError is a delivery failure that does not invalidate the endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push service returned %d", e.Code)
}

// classifyStatus maps a push service response code to a delivery outcome.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, code)
	case code >= 400:
		return &StatusError{Code: code}
	}
	return nil
}

// Result counts the outcome of a fan-out.
type Result struct {
	Successful      int  `json:"successful"`
	Failed          int  `json:"failed"`
	Removed         int  `json:"-"`
	NoSubscriptions bool `json:"-"`
}
