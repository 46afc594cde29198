package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/anonto42/agara/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// SubscriptionStore is the part of the subscription repository the fan-out needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeleteByID(ctx context.Context, id string) error
}

// Service fans a payload out to every endpoint a user has registered.
type Service struct {
	store  SubscriptionStore
	logger *slog.Logger

	once        sync.Once
	web         Sender
	native      Sender
	concurrency int
}

type Option func(*Service)

// WithWebSender overrides the sender used for web subscriptions.
func WithWebSender(s Sender) Option {
	return func(svc *Service) { svc.web = s }
}

// WithNativeSender sets the sender used for android and ios registrations.
func WithNativeSender(s Sender) Option {
	return func(svc *Service) { svc.native = s }
}

func WithConcurrency(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.concurrency = n
		}
	}
}

func NewService(store SubscriptionStore, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:       store,
		logger:      logger.With("component", "push"),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Init configures VAPID delivery. Only the first call has any effect, and only
// when no web sender was injected. Without a key pair web delivery stays unconfigured.
func (s *Service) Init(cfg Config) {
	s.once.Do(func() {
		if cfg.Concurrency > 0 {
			s.concurrency = cfg.Concurrency
		}
		if s.web != nil {
			return
		}
		if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
			s.logger.Warn("VAPID keys not set, web push disabled")
			return
		}
		s.web = NewWebPushSender(cfg)
	})
}

func (s *Service) senderFor(sub *models.PushSubscription) Sender {
	if sub.Platform == "" || sub.Platform == models.PlatformWeb {
		return s.web
	}
	return s.native
}

// Send delivers payload to every subscription of userID. Attempts are independent:
// one failure never cancels another. Endpoints reported gone are deleted.
// An error is returned only when the subscriptions cannot be loaded.
func (s *Service) Send(ctx context.Context, userID string, payload Payload) (Result, error) {
	if userID == "" {
		return Result{}, ErrInvalidRequest
	}

	subs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return Result{NoSubscriptions: true}, nil
	}

	var successful, failed, removed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := range subs {
		sub := &subs[i]
		g.Go(func() error {
			sender := s.senderFor(sub)
			if sender == nil {
				s.logger.Warn("push delivery failed", "platform", sub.Platform, "subscription", sub.ID, "error", ErrNotConfigured)
				failed.Add(1)
				return nil
			}

			err := sender.Send(ctx, sub, payload)
			if err == nil {
				successful.Add(1)
				return nil
			}
			failed.Add(1)

			if errors.Is(err, ErrSubscriptionGone) {
				if delErr := s.store.DeleteByID(ctx, sub.ID); delErr != nil {
					s.logger.Error("failed to delete gone subscription", "subscription", sub.ID, "error", delErr)
					return nil
				}
				removed.Add(1)
				s.logger.Info("removed gone subscription", "user", userID, "subscription", sub.ID)
				return nil
			}
			s.logger.Warn("push delivery failed", "user", userID, "subscription", sub.ID, "error", err)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Successful: int(successful.Load()),
		Failed:     int(failed.Load()),
		Removed:    int(removed.Load()),
	}
	s.logger.Debug("push fan-out done", "user", userID, "successful", res.Successful, "failed", res.Failed, "removed", res.Removed)
	return res, nil
}
