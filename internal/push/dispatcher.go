package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Dispatcher hands a payload to the fan-out service, wherever it runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, payload Payload) (Result, error)
}

// Dispatch runs the fan-out in process.
func (s *Service) Dispatch(ctx context.Context, userID string, payload Payload) (Result, error) {
	return s.Send(ctx, userID, payload)
}

// SendRequest is the body of POST /api/push/send.
type SendRequest struct {
	UserID  string   `json:"userId"`
	Payload *Payload `json:"payload"`
}

// SendResponse is the body returned by POST /api/push/send.
type SendResponse struct {
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// HTTPDispatcher calls a remote POST /api/push/send endpoint.
type HTTPDispatcher struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewHTTPDispatcher(url, serviceKey string, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPDispatcher{
		url:        url,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, userID string, payload Payload) (Result, error) {
	body, err := json.Marshal(SendRequest{UserID: userID, Payload: &payload})
	if err != nil {
		return Result{}, fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.serviceKey != "" {
		req.Header.Set("X-Service-Key", d.serviceKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post %s: %w", d.url, err)
	}
	defer resp.Body.Close()

	var out SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode send response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("push send returned %d: %s", resp.StatusCode, out.Error)
	}
	return Result{
		Successful:      out.Successful,
		Failed:          out.Failed,
		NoSubscriptions: out.Successful == 0 && out.Failed == 0,
	}, nil
}
