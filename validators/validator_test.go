package validators

import (
	"errors"
	"net/http"
	"testing"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/labstack/echo/v4"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	if err := v.Validate(&models.SubscribeRequest{Endpoint: "https://push.example/a"}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	err := v.Validate(&models.SubscribeRequest{Endpoint: "tok", Platform: "windows"})
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 HTTPError", err)
	}

	if err := v.Validate(&models.UnsubscribeRequest{}); err == nil {
		t.Error("missing endpoint accepted")
	}
}

func TestValidateUsername(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		username string
		ok       bool
	}{
		{"mert.k", true},
		{"ayse_01", true},
		{"ab", false},
		{"has space", false},
		{"@ayse", false},
	}
	for _, tt := range tests {
		err := v.Validate(&models.CreateProfileRequest{Username: tt.username})
		if (err == nil) != tt.ok {
			t.Errorf("Validate(%q) err = %v, want ok=%v", tt.username, err, tt.ok)
		}
	}
}
