// Package subscription keeps a device's push registration and the stored
// subscription rows in step.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/repositories"
)

// AgentScope is the fixed scope the background agent is registered under.
const AgentScope = "/"

var (
	ErrUnsupported          = errors.New("push notifications not supported")
	ErrPermissionNotGranted = errors.New("notification permission not granted")
	ErrMissingKeys          = errors.New("web push subscription requires p256dh and auth keys")
)

type PermissionState string

const (
	PermissionDefault     PermissionState = "default"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
	PermissionUnsupported PermissionState = "unsupported"
)

// Registration is a registered background agent.
type Registration struct {
	Scope string
}

// Endpoint is a platform push subscription.
type Endpoint struct {
	URL      string
	P256dh   string
	Auth     string
	Platform string
}

// Platform is the device side: permission prompt, background agent and push registration.
type Platform interface {
	SupportsAgent() bool
	SupportsPush() bool
	SupportsNotifications() bool
	Permission() PermissionState
	RequestPermission(ctx context.Context) (PermissionState, error)
	RegisterAgent(ctx context.Context, scope string) (Registration, error)
	// CurrentSubscription returns the active push subscription, or nil when there is none.
	CurrentSubscription(ctx context.Context) (*Endpoint, error)
	Subscribe(ctx context.Context, applicationServerKey string) (*Endpoint, error)
	Unsubscribe(ctx context.Context, endpoint *Endpoint) error
}

// Store mirrors platform subscriptions server-side.
type Store interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)
	GetByUserEndpoint(ctx context.Context, userID, endpoint string) (*models.PushSubscription, error)
	DeleteByUserEndpoint(ctx context.Context, userID, endpoint string) (int64, error)
}

type Manager struct {
	platform  Platform
	store     Store
	serverKey string
	logger    *slog.Logger

	mu           sync.Mutex
	registration *Registration
}

func NewManager(platform Platform, store Store, serverKey string, logger *slog.Logger) *Manager {
	return &Manager{
		platform:  platform,
		store:     store,
		serverKey: serverKey,
		logger:    logger.With("component", "subscription"),
	}
}

// CheckSupport reports whether the platform can register an agent, receive
// push and show notifications.
func (m *Manager) CheckSupport() bool {
	return m.platform.SupportsAgent() && m.platform.SupportsPush() && m.platform.SupportsNotifications()
}

// RegisterAgent registers the background agent once; later calls return the cached registration.
func (m *Manager) RegisterAgent(ctx context.Context) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registration != nil {
		return *m.registration, nil
	}
	if !m.platform.SupportsAgent() {
		return Registration{}, ErrUnsupported
	}
	reg, err := m.platform.RegisterAgent(ctx, AgentScope)
	if err != nil {
		return Registration{}, fmt.Errorf("register agent: %w", err)
	}
	m.registration = &reg
	return reg, nil
}

func (m *Manager) PermissionState() PermissionState {
	if !m.CheckSupport() {
		return PermissionUnsupported
	}
	return m.platform.Permission()
}

// RequestPermission prompts the user. Each call prompts exactly once.
func (m *Manager) RequestPermission(ctx context.Context) (PermissionState, error) {
	if !m.CheckSupport() {
		return PermissionUnsupported, ErrUnsupported
	}
	state, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return PermissionDefault, fmt.Errorf("request permission: %w", err)
	}
	return state, nil
}

// Subscribe ensures a platform subscription exists and mirrors it into the store.
// Failures are returned once and never retried.
func (m *Manager) Subscribe(ctx context.Context, userID string) (*models.PushSubscription, error) {
	if m.PermissionState() != PermissionGranted {
		return nil, ErrPermissionNotGranted
	}
	if _, err := m.RegisterAgent(ctx); err != nil {
		return nil, err
	}

	ep, err := m.platform.CurrentSubscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if ep == nil {
		ep, err = m.platform.Subscribe(ctx, m.serverKey)
		if err != nil {
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	row, err := m.mirror(ctx, userID, ep)
	if err != nil {
		return nil, err
	}
	m.logger.Info("push subscription stored", "user", userID, "platform", row.Platform)
	return row, nil
}

func (m *Manager) mirror(ctx context.Context, userID string, ep *Endpoint) (*models.PushSubscription, error) {
	platform := ep.Platform
	if platform == "" {
		platform = models.PlatformWeb
	}
	if platform == models.PlatformWeb && (ep.P256dh == "" || ep.Auth == "") {
		return nil, ErrMissingKeys
	}

	row, err := m.store.Upsert(ctx, &models.PushSubscription{
		UserID:   userID,
		Endpoint: ep.URL,
		P256dh:   ep.P256dh,
		Auth:     ep.Auth,
		Platform: platform,
	})
	if err != nil {
		return nil, fmt.Errorf("store subscription: %w", err)
	}
	return row, nil
}

// Unsubscribe cancels the platform subscription and removes its stored row.
// Having no subscription counts as success, so repeated calls are no-ops.
func (m *Manager) Unsubscribe(ctx context.Context, userID string) (bool, error) {
	ep, err := m.platform.CurrentSubscription(ctx)
	if err != nil {
		return false, fmt.Errorf("get subscription: %w", err)
	}
	if ep == nil {
		return true, nil
	}

	if err := m.platform.Unsubscribe(ctx, ep); err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	n, err := m.store.DeleteByUserEndpoint(ctx, userID, ep.URL)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	m.logger.Info("push subscription removed", "user", userID, "rows", n)
	return true, nil
}

// IsSubscribed reports the platform's view only. Use Reconcile to check the store.
func (m *Manager) IsSubscribed(ctx context.Context) bool {
	ep, err := m.platform.CurrentSubscription(ctx)
	return err == nil && ep != nil
}

// Reconcile re-stores the platform subscription when its row is missing,
// e.g. after the fan-out removed it. It reports whether a row was written.
func (m *Manager) Reconcile(ctx context.Context, userID string) (bool, error) {
	if m.PermissionState() != PermissionGranted {
		return false, nil
	}
	ep, err := m.platform.CurrentSubscription(ctx)
	if err != nil {
		return false, fmt.Errorf("get subscription: %w", err)
	}
	if ep == nil {
		return false, nil
	}

	_, err = m.store.GetByUserEndpoint(ctx, userID, ep.URL)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return false, fmt.Errorf("lookup subscription: %w", err)
	}
	if _, err := m.mirror(ctx, userID, ep); err != nil {
		return false, err
	}
	m.logger.Info("push subscription restored", "user", userID)
	return true, nil
}
