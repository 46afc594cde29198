package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/anonto42/agara/backend/internal/database"
	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/repositories"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) repositories.PushSubscriptionRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.PushSubscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(database.PushSubscriptionIndexDDL).Error; err != nil {
		t.Fatalf("subscription index: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repositories.NewPostgresPushSubscriptionRepository(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlatform struct {
	noAgent      bool
	permission   PermissionState
	prompts      int
	promptResult PermissionState
	registers    int
	registerErr  error
	current      *Endpoint
	subscribes   int
	subscribeKey string
	subscribeErr error
	unsubscribes int
}

func (p *fakePlatform) SupportsAgent() bool         { return !p.noAgent }
func (p *fakePlatform) SupportsPush() bool          { return true }
func (p *fakePlatform) SupportsNotifications() bool { return true }
func (p *fakePlatform) Permission() PermissionState { return p.permission }

func (p *fakePlatform) RequestPermission(context.Context) (PermissionState, error) {
	p.prompts++
	p.permission = p.promptResult
	return p.promptResult, nil
}

func (p *fakePlatform) RegisterAgent(_ context.Context, scope string) (Registration, error) {
	p.registers++
	if p.registerErr != nil {
		return Registration{}, p.registerErr
	}
	return Registration{Scope: scope}, nil
}

func (p *fakePlatform) CurrentSubscription(context.Context) (*Endpoint, error) {
	return p.current, nil
}

func (p *fakePlatform) Subscribe(_ context.Context, key string) (*Endpoint, error) {
	p.subscribes++
	p.subscribeKey = key
	if p.subscribeErr != nil {
		return nil, p.subscribeErr
	}
	p.current = &Endpoint{URL: "https://push.example/new", P256dh: "pk", Auth: "au"}
	return p.current, nil
}

func (p *fakePlatform) Unsubscribe(context.Context, *Endpoint) error {
	p.unsubscribes++
	p.current = nil
	return nil
}

func TestCheckSupportAndPermission(t *testing.T) {
	p := &fakePlatform{noAgent: true, permission: PermissionGranted}
	m := NewManager(p, newStore(t), "key", testLogger())

	if m.CheckSupport() {
		t.Error("CheckSupport = true without agent support")
	}
	if got := m.PermissionState(); got != PermissionUnsupported {
		t.Errorf("PermissionState = %q, want %q", got, PermissionUnsupported)
	}
	if _, err := m.RegisterAgent(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("RegisterAgent err = %v, want ErrUnsupported", err)
	}
}

func TestRequestPermissionPromptsOncePerCall(t *testing.T) {
	p := &fakePlatform{permission: PermissionDefault, promptResult: PermissionDenied}
	m := NewManager(p, newStore(t), "key", testLogger())

	for i := 1; i <= 2; i++ {
		state, err := m.RequestPermission(context.Background())
		if err != nil {
			t.Fatalf("RequestPermission: %v", err)
		}
		if state != PermissionDenied {
			t.Errorf("state = %q, want %q", state, PermissionDenied)
		}
		if p.prompts != i {
			t.Errorf("prompts = %d, want %d", p.prompts, i)
		}
	}
}

func TestRegisterAgentCached(t *testing.T) {
	p := &fakePlatform{}
	m := NewManager(p, newStore(t), "key", testLogger())

	for i := 0; i < 3; i++ {
		reg, err := m.RegisterAgent(context.Background())
		if err != nil {
			t.Fatalf("RegisterAgent: %v", err)
		}
		if reg.Scope != AgentScope {
			t.Errorf("scope = %q, want %q", reg.Scope, AgentScope)
		}
	}
	if p.registers != 1 {
		t.Errorf("platform registrations = %d, want 1", p.registers)
	}
}

func TestSubscribeRequiresPermission(t *testing.T) {
	p := &fakePlatform{permission: PermissionDefault}
	m := NewManager(p, newStore(t), "key", testLogger())

	sub, err := m.Subscribe(context.Background(), "u1")
	if !errors.Is(err, ErrPermissionNotGranted) || sub != nil {
		t.Fatalf("Subscribe = %v, %v; want nil, ErrPermissionNotGranted", sub, err)
	}
	if p.subscribes != 0 {
		t.Error("platform subscribe called without permission")
	}
}

func TestSubscribeCreatesAndMirrors(t *testing.T) {
	p := &fakePlatform{permission: PermissionGranted}
	store := newStore(t)
	m := NewManager(p, store, "server-key", testLogger())
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if p.subscribeKey != "server-key" {
		t.Errorf("application server key = %q, want %q", p.subscribeKey, "server-key")
	}
	if sub.Endpoint != "https://push.example/new" || sub.P256dh != "pk" || sub.Auth != "au" {
		t.Errorf("stored = %+v", sub)
	}
	if !m.IsSubscribed(ctx) {
		t.Error("IsSubscribed = false after Subscribe")
	}

	// Existing platform subscription is reused, not recreated, and the row is not duplicated.
	again, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if p.subscribes != 1 {
		t.Errorf("platform subscribes = %d, want 1", p.subscribes)
	}
	if again.ID != sub.ID {
		t.Errorf("second Subscribe id = %q, want %q", again.ID, sub.ID)
	}
	rows, _ := store.ListByUser(ctx, "u1")
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestSubscribePlatformFailureIsSoft(t *testing.T) {
	p := &fakePlatform{permission: PermissionGranted, subscribeErr: errors.New("push service unavailable")}
	store := newStore(t)
	m := NewManager(p, store, "key", testLogger())

	sub, err := m.Subscribe(context.Background(), "u1")
	if err == nil || sub != nil {
		t.Fatalf("Subscribe = %v, %v; want nil, error", sub, err)
	}
	if p.subscribes != 1 {
		t.Errorf("platform subscribes = %d, want 1 (no retry)", p.subscribes)
	}
	rows, _ := store.ListByUser(context.Background(), "u1")
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	p := &fakePlatform{permission: PermissionGranted}
	store := newStore(t)
	m := NewManager(p, store, "key", testLogger())
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "u1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for i := 0; i < 2; i++ {
		ok, err := m.Unsubscribe(ctx, "u1")
		if err != nil || !ok {
			t.Fatalf("Unsubscribe #%d = %v, %v; want true, nil", i+1, ok, err)
		}
	}
	if p.unsubscribes != 1 {
		t.Errorf("platform unsubscribes = %d, want 1", p.unsubscribes)
	}
	if m.IsSubscribed(ctx) {
		t.Error("IsSubscribed = true after Unsubscribe")
	}
	rows, _ := store.ListByUser(ctx, "u1")
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestReportedUnsubscribeIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	req := models.SubscribeRequest{Endpoint: "https://push.example/a", Keys: models.SubscriptionKeys{P256dh: "pk", Auth: "au"}}

	if _, err := ForRequest(req, store, "key", testLogger()).Subscribe(ctx, "u1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for i := 0; i < 2; i++ {
		m := NewManager(ForEndpoint(req.Endpoint), store, "key", testLogger())
		if ok, err := m.Unsubscribe(ctx, "u1"); err != nil || !ok {
			t.Fatalf("Unsubscribe #%d = %v, %v", i+1, ok, err)
		}
	}
	if _, err := store.GetByUserEndpoint(ctx, "u1", req.Endpoint); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("row still present: %v", err)
	}
}

func TestReportedWebSubscriptionNeedsKeys(t *testing.T) {
	m := ForRequest(models.SubscribeRequest{Endpoint: "https://push.example/a"}, newStore(t), "key", testLogger())
	if _, err := m.Subscribe(context.Background(), "u1"); !errors.Is(err, ErrMissingKeys) {
		t.Fatalf("err = %v, want ErrMissingKeys", err)
	}

	native := ForRequest(models.SubscribeRequest{Endpoint: "fcm-token", Platform: models.PlatformAndroid}, newStore(t), "key", testLogger())
	sub, err := native.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("native Subscribe: %v", err)
	}
	if sub.Platform != models.PlatformAndroid {
		t.Errorf("platform = %q, want %q", sub.Platform, models.PlatformAndroid)
	}
}

func TestReconcileRestoresMissingRow(t *testing.T) {
	p := &fakePlatform{permission: PermissionGranted}
	store := newStore(t)
	m := NewManager(p, store, "key", testLogger())
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if restored, err := m.Reconcile(ctx, "u1"); err != nil || restored {
		t.Fatalf("Reconcile with row present = %v, %v; want false, nil", restored, err)
	}

	if _, err := store.DeleteByUserEndpoint(ctx, "u1", sub.Endpoint); err != nil {
		t.Fatalf("delete: %v", err)
	}
	restored, err := m.Reconcile(ctx, "u1")
	if err != nil || !restored {
		t.Fatalf("Reconcile = %v, %v; want true, nil", restored, err)
	}
	if _, err := store.GetByUserEndpoint(ctx, "u1", sub.Endpoint); err != nil {
		t.Errorf("row not restored: %v", err)
	}
}
