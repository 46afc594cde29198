// Package agent models the browser-resident background agent (service worker) that receives push
// messages, shows system notifications and routes notification clicks. The server uses the same
// defaults when it builds outbound payloads so both ends agree on the wire format.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults applied when an inbound push message omits a field.
const (
	DefaultTitle = "Agara Köyü"
	DefaultBody  = "Yeni bir bildiriminiz var!"
	DefaultURL   = "/bildirimler"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
	Scope        = "/"
)

// Notification action identifiers and their labels.
const (
	ActionOpen  = "open"
	ActionClose = "close"

	LabelOpen  = "Aç"
	LabelClose = "Kapat"
)

// Message is the push payload as the agent understands it.
type Message struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// WithDefaults fills every empty field with its default.
func (m Message) WithDefaults() Message {
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Body == "" {
		m.Body = DefaultBody
	}
	if m.URL == "" {
		m.URL = DefaultURL
	}
	if m.Icon == "" {
		m.Icon = DefaultIcon
	}
	if m.Badge == "" {
		m.Badge = DefaultBadge
	}
	return m
}

// ParsePush decodes an inbound push message. Data that is not JSON at all becomes the body;
// valid JSON that is not an object carries no fields, so every default applies.
func ParsePush(data []byte) Message {
	var m Message
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return m.WithDefaults()
	}
	if !json.Valid(trimmed) {
		return Message{Body: string(trimmed)}.WithDefaults()
	}
	if trimmed[0] == '{' {
		// Mistyped fields are skipped; the rest still decode.
		_ = json.Unmarshal(trimmed, &m)
	}
	return m.WithDefaults()
}

// Action is a button rendered on the system notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// SystemNotification is what the agent asks the platform to display.
type SystemNotification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Icon     string            `json:"icon"`
	Badge    string            `json:"badge"`
	Tag      string            `json:"tag,omitempty"`
	Renotify bool              `json:"renotify"`
	Data     map[string]string `json:"data"`
	Actions  []Action          `json:"actions"`
}

// BuildNotification turns a parsed message into display options with the open and dismiss actions.
func BuildNotification(m Message) SystemNotification {
	m = m.WithDefaults()
	return SystemNotification{
		Title:    m.Title,
		Body:     m.Body,
		Icon:     m.Icon,
		Badge:    m.Badge,
		Tag:      m.Tag,
		Renotify: m.Tag != "",
		Data:     map[string]string{"url": m.URL},
		Actions: []Action{
			{Action: ActionOpen, Title: LabelOpen},
			{Action: ActionClose, Title: LabelClose},
		},
	}
}

// Window is an open application window controlled by the agent.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// Clients is the set of windows the agent can see.
type Clients interface {
	MatchAll(ctx context.Context) ([]Window, error)
	OpenWindow(ctx context.Context, url string) error
	Claim(ctx context.Context) error
}

// ClickOutcome reports what a click did.
type ClickOutcome int

const (
	ClickClosed ClickOutcome = iota
	ClickFocused
	ClickOpened
)

func (o ClickOutcome) String() string {
	switch o {
	case ClickClosed:
		return "closed"
	case ClickFocused:
		return "focused"
	case ClickOpened:
		return "opened"
	}
	return fmt.Sprintf("ClickOutcome(%d)", int(o))
}

// HandleClick routes a notification click. The dismiss action only closes. Anything else focuses
// an existing window of origin and navigates it to target, or opens a new window when none exists.
func HandleClick(ctx context.Context, clients Clients, origin, action, target string) (ClickOutcome, error) {
	if action == ActionClose {
		return ClickClosed, nil
	}
	if target == "" {
		target = DefaultURL
	}

	windows, err := clients.MatchAll(ctx)
	if err != nil {
		return ClickClosed, fmt.Errorf("match clients: %w", err)
	}
	for _, w := range windows {
		if !sameOrigin(w.URL(), origin) {
			continue
		}
		if err := w.Focus(ctx); err != nil {
			return ClickClosed, fmt.Errorf("focus window: %w", err)
		}
		if err := w.Navigate(ctx, target); err != nil {
			return ClickFocused, fmt.Errorf("navigate window: %w", err)
		}
		return ClickFocused, nil
	}

	if err := clients.OpenWindow(ctx, target); err != nil {
		return ClickClosed, fmt.Errorf("open window: %w", err)
	}
	return ClickOpened, nil
}

func sameOrigin(url, origin string) bool {
	if origin == "" {
		return true
	}
	return url == origin || strings.HasPrefix(url, strings.TrimSuffix(origin, "/")+"/")
}

// Installer lets a freshly installed agent replace the previous one without waiting.
type Installer interface {
	SkipWaiting(ctx context.Context) error
}

// Install takes over immediately instead of waiting for old tabs to close.
func Install(ctx context.Context, w Installer) error {
	return w.SkipWaiting(ctx)
}

// Activate claims every open client so updates apply without a reload.
func Activate(ctx context.Context, clients Clients) error {
	return clients.Claim(ctx)
}
