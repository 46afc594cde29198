package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/lib/pq"
)

// DefaultChannel is the NOTIFY channel the notifications insert trigger publishes on.
const DefaultChannel = "notifications_inserted"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

// Publisher receives inserted notifications.
type Publisher interface {
	Publish(n models.Notification)
}

// PostgresListener relays NOTIFY payloads from the insert trigger to a Publisher.
type PostgresListener struct {
	connStr string
	channel string
	pub     Publisher
	logger  *slog.Logger
}

func NewPostgresListener(connStr, channel string, pub Publisher, logger *slog.Logger) *PostgresListener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PostgresListener{
		connStr: connStr,
		channel: channel,
		pub:     pub,
		logger:  logger.With("component", "pg-listener", "channel", channel),
	}
}

// Run listens until ctx is cancelled. Events raised while the connection is
// down are lost; clients recover them with their initial fetch.
func (l *PostgresListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.connStr, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn("listener connection problem", "event", ev, "error", err)
		case pq.ListenerEventReconnected:
			l.logger.Info("listener reconnected")
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info("listening for notification inserts")

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// reconnected; anything sent meanwhile is gone
				continue
			}
			notification, err := decodeNotification(n.Extra)
			if err != nil {
				l.logger.Error("decode notify payload", "error", err)
				continue
			}
			l.pub.Publish(notification)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func decodeNotification(payload string) (models.Notification, error) {
	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return models.Notification{}, err
	}
	if n.ID == "" || n.UserID == "" {
		return models.Notification{}, fmt.Errorf("payload missing id or user_id")
	}
	return n, nil
}
