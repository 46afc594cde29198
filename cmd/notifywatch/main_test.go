package main

import (
	"bytes"
	"testing"

	"github.com/anonto42/agara/backend/internal/agent"
	"github.com/anonto42/agara/backend/internal/feed"
)

func TestRealtimeURL(t *testing.T) {
	tests := []struct {
		api, want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/v1/realtime/notifications"},
		{"https://api.agarakoyu.com/", "wss://api.agarakoyu.com/api/v1/realtime/notifications"},
	}
	for _, tt := range tests {
		if got := realtimeURL(tt.api); got != tt.want {
			t.Errorf("realtimeURL(%q) = %q, want %q", tt.api, got, tt.want)
		}
	}
}

func TestPrintToasterUsesAgentDefaults(t *testing.T) {
	tests := []struct {
		toast feed.Toast
		want  string
	}{
		{
			feed.Toast{ID: "n1", Type: "like", Title: "Yeni beğeni", Message: "Ali gönderinizi beğendi", URL: "/gonderi/1"},
			"[like] Yeni beğeni: Ali gönderinizi beğendi (/gonderi/1)\n",
		},
		{
			feed.Toast{ID: "n2", Type: "system"},
			"[system] " + agent.DefaultTitle + ": " + agent.DefaultBody + " (" + agent.DefaultURL + ")\n",
		},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printToaster{w: &buf}.Show(tt.toast)
		if got := buf.String(); got != tt.want {
			t.Errorf("Show(%s) = %q, want %q", tt.toast.ID, got, tt.want)
		}
	}
}
