package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anonto42/agara/backend/internal/models"
	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Dialer connects to the realtime endpoint as an authenticated user.
type Dialer struct {
	URL    string
	Token  string
	Logger *slog.Logger
}

// Subscribe opens the stream. The server scopes it to the token's user, so
// userID only labels logs. The channel closes when ctx ends or the connection drops.
func (d *Dialer) Subscribe(ctx context.Context, userID string) (<-chan models.Notification, error) {
	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}
	conn, _, err := ws.Dial(ctx, d.URL, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := make(chan models.Notification, sendBufferSize)
	go func() {
		defer close(out)
		defer conn.Close(ws.StatusNormalClosure, "")
		for {
			var ev Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				if ctx.Err() == nil {
					logger.Warn("realtime stream ended", "user", userID, "error", err)
				}
				return
			}
			if ev.Type != EventNotificationCreated {
				continue
			}
			select {
			case out <- ev.Notification:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
