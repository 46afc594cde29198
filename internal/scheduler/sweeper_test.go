package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakePurger struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakePurger) DeleteExpiredStories(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return 2, f.err
}

func (f *fakePurger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperRunsImmediatelyAndPeriodically(t *testing.T) {
	p := &fakePurger{}
	s := NewStorySweeper(p, 10*time.Millisecond, testLogger())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for p.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeps = %d, want at least 3", p.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	after := p.count()
	time.Sleep(30 * time.Millisecond)
	if p.count() != after {
		t.Error("sweeper kept running after Stop")
	}
	if !p.calls[0].Equal(fixed) {
		t.Errorf("now = %v, want %v", p.calls[0], fixed)
	}
}

func TestSweeperSurvivesErrors(t *testing.T) {
	p := &fakePurger{err: errors.New("mongo down")}
	s := NewStorySweeper(p, 10*time.Millisecond, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper stopped after an error")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopWithoutStart(t *testing.T) {
	NewStorySweeper(&fakePurger{}, time.Minute, testLogger()).Stop()
}
