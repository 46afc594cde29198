package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Profile is the public face of an authenticated identity. The ID is the auth provider's user id.
type Profile struct {
	ID          string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Username    string    `json:"username" gorm:"size:30;uniqueIndex"`
	DisplayName string    `json:"display_name" gorm:"size:100"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

// ProfileCompact is the actor summary embedded in API responses
type ProfileCompact struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (p *Profile) ToCompact() ProfileCompact {
	return ProfileCompact{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}

// AccessClaims are the claims of an access token issued by the hosted auth service.
// The subject is the profile id.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CreateProfileRequest claims a username for the authenticated identity
type CreateProfileRequest struct {
	Username    string `json:"username" validate:"required,username"`
	DisplayName string `json:"display_name" validate:"max=100"`
	AvatarURL   string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}
