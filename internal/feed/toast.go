package feed

import (
	"time"

	"github.com/anonto42/agara/backend/internal/models"
)

const DefaultToastDuration = 5 * time.Second

// Toast is a transient, self-dismissing alert for one new notification.
type Toast struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	URL      string        `json:"url,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Toaster displays toasts. Dismiss is called when a toast expires or is closed.
type Toaster interface {
	Show(t Toast)
	Dismiss(id string)
}

// ToastFor maps a notification to its toast. Unknown types get the generic text.
func ToastFor(n *models.Notification, d time.Duration) Toast {
	if d <= 0 {
		d = DefaultToastDuration
	}
	r := models.Render(n)
	return Toast{
		ID:       n.ID,
		Type:     n.Type,
		Title:    r.Title,
		Message:  r.Message,
		URL:      r.URL,
		Duration: d,
	}
}

type activeToast struct {
	toast Toast
	timer *time.Timer
}
