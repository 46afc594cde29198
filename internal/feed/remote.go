package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
)

// HTTPRemote talks to the notification REST API with a bearer token.
type HTTPRemote struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRemote(baseURL, token string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (r *HTTPRemote) ListRecent(ctx context.Context, limit int) ([]models.Notification, error) {
	var items []models.Notification
	err := r.do(ctx, http.MethodGet, "/api/v1/notifications/recent?limit="+strconv.Itoa(limit), &items)
	return items, err
}

func (r *HTTPRemote) MarkAsRead(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodPut, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil)
}

func (r *HTTPRemote) MarkAllAsRead(ctx context.Context) error {
	return r.do(ctx, http.MethodPut, "/api/v1/notifications/read-all", nil)
}

// SearchUsers returns profiles whose username starts with prefix.
func (r *HTTPRemote) SearchUsers(ctx context.Context, prefix string) ([]models.ProfileCompact, error) {
	var profiles []models.ProfileCompact
	err := r.do(ctx, http.MethodGet, "/api/v1/users/search?q="+url.QueryEscape(prefix), &profiles)
	return profiles, err
}
