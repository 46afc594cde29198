package subscription

import (
	"context"
	"log/slog"

	"github.com/anonto42/agara/backend/internal/models"
)

// ReportedPlatform is the server's view of a client that has already been
// granted permission and posted its push subscription. The client owns the
// real registration, so unsubscribing here only forgets the endpoint.
type ReportedPlatform struct {
	endpoint *Endpoint
}

func NewReportedPlatform(req models.SubscribeRequest) *ReportedPlatform {
	return &ReportedPlatform{endpoint: &Endpoint{
		URL:      req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
		Platform: req.Platform,
	}}
}

// ForEndpoint builds a ReportedPlatform that only knows the endpoint URL, as sent on unsubscribe.
func ForEndpoint(endpoint string) *ReportedPlatform {
	return &ReportedPlatform{endpoint: &Endpoint{URL: endpoint}}
}

func (p *ReportedPlatform) SupportsAgent() bool         { return true }
func (p *ReportedPlatform) SupportsPush() bool          { return true }
func (p *ReportedPlatform) SupportsNotifications() bool { return true }
func (p *ReportedPlatform) Permission() PermissionState { return PermissionGranted }

func (p *ReportedPlatform) RequestPermission(context.Context) (PermissionState, error) {
	return PermissionGranted, nil
}

func (p *ReportedPlatform) RegisterAgent(_ context.Context, scope string) (Registration, error) {
	return Registration{Scope: scope}, nil
}

func (p *ReportedPlatform) CurrentSubscription(context.Context) (*Endpoint, error) {
	if p.endpoint == nil || p.endpoint.URL == "" {
		return nil, nil
	}
	return p.endpoint, nil
}

func (p *ReportedPlatform) Subscribe(context.Context, string) (*Endpoint, error) {
	return p.endpoint, nil
}

func (p *ReportedPlatform) Unsubscribe(context.Context, *Endpoint) error {
	p.endpoint = nil
	return nil
}

// ForRequest returns a Manager over a client-reported subscription.
func ForRequest(req models.SubscribeRequest, store Store, serverKey string, logger *slog.Logger) *Manager {
	return NewManager(NewReportedPlatform(req), store, serverKey, logger)
}
