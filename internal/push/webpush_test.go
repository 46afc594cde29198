package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anonto42/agara/backend/internal/models"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code     int
		wantGone bool
		wantErr  bool
	}{
		{201, false, false},
		{200, false, false},
		{404, true, true},
		{410, true, true},
		{413, false, true},
		{429, false, true},
		{500, false, true},
	}
	for _, tt := range tests {
		err := classifyStatus(tt.code)
		if (err != nil) != tt.wantErr {
			t.Errorf("classifyStatus(%d) = %v, wantErr %v", tt.code, err, tt.wantErr)
		}
		if errors.Is(err, ErrSubscriptionGone) != tt.wantGone {
			t.Errorf("classifyStatus(%d) gone = %v, want %v", tt.code, !tt.wantGone, tt.wantGone)
		}
	}
}

func TestTopic(t *testing.T) {
	tests := map[string]string{
		"":                                      "",
		"like-42":                               "like-42",
		"notification_abc":                      "notification_abc",
		"has space":                             "",
		"a3f1c2d4-0000-4000-8000-1234567890ab": "",
	}
	for in, want := range tests {
		if got := topic(in); got != want {
			t.Errorf("topic(%q) = %q, want %q", in, got, want)
		}
	}
}

// browserSubscription returns a subscription with valid client keys so webpush-go can encrypt.
func browserSubscription(t *testing.T, endpoint string) *models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &models.PushSubscription{
		ID:       "sub-1",
		UserID:   "u1",
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
		Platform: models.PlatformWeb,
	}
}

func TestWebPushSenderStatus(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	tests := []struct {
		name     string
		status   int
		wantErr  bool
		wantGone bool
	}{
		{"created", http.StatusCreated, false, false},
		{"gone", http.StatusGone, true, true},
		{"not found", http.StatusNotFound, true, true},
		{"server error", http.StatusInternalServerError, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTTL, gotAuth, gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTTL = r.Header.Get("TTL")
				gotAuth = r.Header.Get("Authorization")
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			sender := NewWebPushSender(Config{
				VAPIDPublicKey:  pub,
				VAPIDPrivateKey: priv,
				Subject:         "mailto:ops@example.com",
			})
			err := sender.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), Payload{Title: "hi", Tag: "like-1"})

			if (err != nil) != tt.wantErr {
				t.Fatalf("Send err = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrSubscriptionGone) != tt.wantGone {
				t.Fatalf("Send err = %v, gone want %v", err, tt.wantGone)
			}
			if gotTTL != "86400" {
				t.Errorf("TTL = %q, want %q", gotTTL, "86400")
			}
			if !strings.HasPrefix(gotAuth, "vapid ") {
				t.Errorf("Authorization = %q, want vapid scheme", gotAuth)
			}
			if gotEncoding != "aes128gcm" {
				t.Errorf("Content-Encoding = %q, want aes128gcm", gotEncoding)
			}
		})
	}
}

func TestPayloadEncodeAppliesDefaults(t *testing.T) {
	data, err := Payload{Title: "Yeni beğeni"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["title"] != "Yeni beğeni" {
		t.Errorf("title = %v", got["title"])
	}
	if got["url"] != "/bildirimler" {
		t.Errorf("url = %v, want /bildirimler", got["url"])
	}
	if got["body"] == "" || got["body"] == nil {
		t.Error("expected default body")
	}
}

func TestFCMMessage(t *testing.T) {
	s := &models.PushSubscription{Endpoint: "fcm-token", Platform: models.PlatformAndroid}
	msg := fcmMessage(s, Payload{Title: "Yeni yorum", Body: "Ali yorum yaptı", URL: "/gonderi/p1", Tag: "comment-p1"})

	if msg.Token != "fcm-token" {
		t.Errorf("token = %q, want %q", msg.Token, "fcm-token")
	}
	if msg.Notification.Title != "Yeni yorum" {
		t.Errorf("title = %q", msg.Notification.Title)
	}
	if msg.Data["url"] != "/gonderi/p1" {
		t.Errorf("url = %q", msg.Data["url"])
	}
	if msg.Android == nil || msg.Android.CollapseKey != "comment-p1" {
		t.Error("expected android collapse key from tag")
	}

	untagged := fcmMessage(s, Payload{Title: "x"})
	if untagged.Android != nil {
		t.Error("untagged message should not set android config")
	}
}
