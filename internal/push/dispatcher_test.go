package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPDispatcher(t *testing.T) {
	var got SendRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Service-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SendResponse{Message: "Push notifications sent", Successful: 2, Failed: 1})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, "secret", 0)
	res, err := d.Dispatch(context.Background(), "u1", Payload{Title: "hi", URL: "/x"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Successful != 2 || res.Failed != 1 {
		t.Errorf("result = %d/%d, want 2/1", res.Successful, res.Failed)
	}
	if gotKey != "secret" {
		t.Errorf("X-Service-Key = %q, want %q", gotKey, "secret")
	}
	if got.UserID != "u1" || got.Payload == nil || got.Payload.Title != "hi" {
		t.Errorf("request = %+v", got)
	}
}

func TestHTTPDispatcherError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SendResponse{Error: "lookup failed"})
	}))
	defer srv.Close()

	if _, err := NewHTTPDispatcher(srv.URL, "", 0).Dispatch(context.Background(), "u1", Payload{Title: "hi"}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
