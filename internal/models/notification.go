package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification kinds understood by the renderer. The store accepts any string.
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationMention = "mention"
)

// Keys used inside Notification.Data
const (
	DataActorID        = "actor_id"
	DataActorName      = "actor_name"
	DataActorUsername  = "actor_username"
	DataPostID         = "post_id"
	DataCommentPreview = "comment_preview"
)

// NotificationListPath is where the client lists all notifications.
const NotificationListPath = "/bildirimler"

// Notification represents one user-facing event (PostgreSQL)
type Notification struct {
	ID        string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID    string            `json:"user_id" gorm:"type:varchar(36);not null;index"` // recipient
	Type      string            `json:"type" gorm:"size:30;index"`                      // like, comment, follow, mention
	Data      datatypes.JSONMap `json:"data"`
	Read      bool              `json:"read" gorm:"default:false;index"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// DataString returns a string value from the payload, or "" when absent.
func (n *Notification) DataString(key string) string {
	if n.Data == nil {
		return ""
	}
	switch v := n.Data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Rendered is the human-facing text of a notification, shared by toasts and push payloads.
type Rendered struct {
	Title   string
	Message string
	URL     string
}

// Render maps a notification to its title, message and deep-link.
// Unknown types fall back to a generic message that links to the notification list.
func Render(n *Notification) Rendered {
	actor := n.DataString(DataActorName)
	if actor == "" {
		actor = n.DataString(DataActorUsername)
	}
	if actor == "" {
		actor = "Birisi"
	}
	postURL := NotificationListPath
	if postID := n.DataString(DataPostID); postID != "" {
		postURL = "/gonderi/" + postID
	}

	switch n.Type {
	case NotificationLike:
		return Rendered{Title: "Yeni beğeni", Message: actor + " gönderinizi beğendi", URL: postURL}
	case NotificationComment:
		msg := actor + " gönderinize yorum yaptı"
		if preview := n.DataString(DataCommentPreview); preview != "" {
			msg += ": " + preview
		}
		return Rendered{Title: "Yeni yorum", Message: msg, URL: postURL}
	case NotificationFollow:
		profileURL := NotificationListPath
		if username := n.DataString(DataActorUsername); username != "" {
			profileURL = "/profil/" + username
		}
		return Rendered{Title: "Yeni takipçi", Message: actor + " sizi takip etmeye başladı", URL: profileURL}
	case NotificationMention:
		return Rendered{Title: "Sizden bahsedildi", Message: actor + " bir gönderide sizden bahsetti", URL: postURL}
	default:
		return Rendered{Title: "Yeni bildirim", Message: "Yeni bir bildiriminiz var!", URL: NotificationListPath}
	}
}
