package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platforms a subscription can be registered from. Anything other than web is delivered through FCM.
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// PushSubscription is one registered delivery endpoint for one user on one device (PostgreSQL)
type PushSubscription struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Endpoint  string    `json:"endpoint" gorm:"type:text;not null"`
	P256dh    string    `json:"p256dh" gorm:"column:p256dh;type:text"`
	Auth      string    `json:"auth" gorm:"type:text"`
	Platform  string    `json:"platform" gorm:"size:20;default:'web'"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Platform == "" {
		p.Platform = PlatformWeb
	}
	return nil
}

// SubscriptionKeys is the keying material the browser hands out with a subscription.
// Native (FCM) registrations have none.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeRequest is the body the browser posts after pushManager.subscribe()
type SubscribeRequest struct {
	Endpoint string           `json:"endpoint" validate:"required"`
	Keys     SubscriptionKeys `json:"keys"`
	Platform string           `json:"platform,omitempty" validate:"omitempty,oneof=web android ios"`
}

// UnsubscribeRequest identifies the endpoint to remove for the authenticated user
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}
