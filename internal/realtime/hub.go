// Package realtime streams newly inserted notification rows to the
// recipient's open websocket sessions.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/anonto42/agara/backend/internal/models"
)

// EventNotificationCreated is the only event type currently streamed.
const EventNotificationCreated = "notification_created"

// Event is one change-feed message as written to the socket.
type Event struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
}

// Hub tracks websocket clients per recipient and fans inserts out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	origins []string
	logger  *slog.Logger
}

// NewHub creates a Hub. origins are the websocket origin patterns accepted besides same-host.
func NewHub(logger *slog.Logger, origins ...string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		origins: origins,
		logger:  logger.With("component", "realtime"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers n to every session of its recipient. Sessions whose
// buffer is full miss the event.
func (h *Hub) Publish(n models.Notification) {
	data, err := json.Marshal(Event{Type: EventNotificationCreated, Notification: n})
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[n.UserID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping event", "user", n.UserID, "notification", n.ID)
		}
	}
}

// ClientCount returns the number of sessions open for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
