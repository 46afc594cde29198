package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StoryPurger deletes stories that expired before now, along with their views.
type StoryPurger interface {
	DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error)
}

// StorySweeper periodically removes expired stories.
type StorySweeper struct {
	mu       sync.RWMutex
	stories  StoryPurger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewStorySweeper(stories StoryPurger, interval time.Duration, logger *slog.Logger) *StorySweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &StorySweeper{
		stories:  stories,
		interval: interval,
		logger:   logger.With("component", "story-sweeper"),
		now:      time.Now,
	}
}

// Start sweeps once immediately, then every interval until Stop.
func (s *StorySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop gracefully stops the sweeper.
func (s *StorySweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *StorySweeper) sweep(ctx context.Context) {
	n, err := s.stories.DeleteExpiredStories(ctx, s.now())
	if err != nil {
		s.logger.Error("sweep expired stories", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired stories removed", "count", n)
	}
}
