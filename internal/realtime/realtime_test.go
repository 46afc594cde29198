package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{hub: hub, userID: userID, send: make(chan []byte, sendBufferSize)}
}

func TestPublishScopedToRecipient(t *testing.T) {
	hub := NewHub(testLogger())
	a1, a2, b := mockClient(hub, "a"), mockClient(hub, "a"), mockClient(hub, "b")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}

	hub.Publish(models.Notification{ID: "n1", UserID: "a", Type: models.NotificationLike})

	for _, c := range []*Client{a1, a2} {
		select {
		case data := <-c.send:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if ev.Type != EventNotificationCreated || ev.Notification.ID != "n1" {
				t.Errorf("event = %+v", ev)
			}
		default:
			t.Error("recipient session got nothing")
		}
	}
	select {
	case <-b.send:
		t.Error("other user received the event")
	default:
	}
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, "a")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if got := hub.ClientCount("a"); got != 0 {
		t.Fatalf("ClientCount = %d, want 0", got)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, "a")
	hub.Register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		hub.Publish(models.Notification{ID: "n", UserID: "a"})
	}
	if got := len(c.send); got != sendBufferSize {
		t.Fatalf("buffered = %d, want %d", got, sendBufferSize)
	}
}

func TestDecodeNotification(t *testing.T) {
	payload := `{"id":"3f0e","user_id":"u1","type":"comment","data":{"actor_name":"Ali","post_id":"p1"},"read":false,"created_at":"2026-03-01T10:00:00.123456+00:00"}`
	n, err := decodeNotification(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.ID != "3f0e" || n.UserID != "u1" || n.Type != models.NotificationComment {
		t.Errorf("notification = %+v", n)
	}
	if got := n.DataString(models.DataActorName); got != "Ali" {
		t.Errorf("actor_name = %q, want %q", got, "Ali")
	}
	if n.CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}

	if _, err := decodeNotification(`{"type":"like"}`); err == nil {
		t.Error("expected error for payload without ids")
	}
	if _, err := decodeNotification(`not json`); err == nil {
		t.Error("expected error for invalid json")
	}
}

func TestServeAndDial(t *testing.T) {
	hub := NewHub(testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		hub.Serve(w, r, "u1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	d := &Dialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Token: "tok", Logger: testLogger()}
	events, err := d.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("u1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(models.Notification{ID: "other", UserID: "u2"})
	hub.Publish(models.Notification{ID: "n1", UserID: "u1", Type: models.NotificationFollow})

	select {
	case n := <-events:
		if n.ID != "n1" {
			t.Errorf("received %q, want %q", n.ID, "n1")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	cancel()
	for range events {
	}
}

func TestDialUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := &Dialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	if _, err := d.Subscribe(context.Background(), "u1"); err == nil {
		t.Fatal("expected dial error")
	}
}
