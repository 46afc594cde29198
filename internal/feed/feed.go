// Package feed is the client-side realtime notification list: an initial
// fetch, live inserts with toasts, and optimistic read marking.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
)

const DefaultLimit = 50

var (
	ErrNotStarted     = errors.New("feed not started")
	ErrAlreadyStarted = errors.New("feed already started")
	ErrUnknown        = errors.New("notification not in feed")
)

type State int

const (
	StateUninitialized State = iota
	StateListening
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateListening:
		return "listening"
	case StateTornDown:
		return "torn down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Remote is the authenticated notification API.
type Remote interface {
	ListRecent(ctx context.Context, limit int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
}

// ChangeFeed streams rows inserted for a user until ctx ends.
type ChangeFeed interface {
	Subscribe(ctx context.Context, userID string) (<-chan models.Notification, error)
}

type Option func(*Feed)

func WithLimit(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.limit = n
		}
	}
}

func WithToastDuration(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.toastDuration = d
		}
	}
}

func WithToaster(t Toaster) Option {
	return func(f *Feed) { f.toaster = t }
}

type Feed struct {
	remote        Remote
	changes       ChangeFeed
	toaster       Toaster
	logger        *slog.Logger
	limit         int
	toastDuration time.Duration

	mu      sync.Mutex
	state   State
	userID  string
	items   []models.Notification
	unread  int
	toasts  map[string]*activeToast
	order   []string
	pending map[int]pendingRead
	nextOp  int
	// ids whose read=true has been acknowledged by the server
	confirmed map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

func New(remote Remote, changes ChangeFeed, logger *slog.Logger, opts ...Option) *Feed {
	f := &Feed{
		remote:        remote,
		changes:       changes,
		logger:        logger.With("component", "feed"),
		limit:         DefaultLimit,
		toastDuration: DefaultToastDuration,
		toasts:        make(map[string]*activeToast),
		pending:       make(map[int]pendingRead),
		confirmed:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start loads the most recent notifications and begins consuming inserts.
// The subscription lives until Stop or until ctx is cancelled.
func (f *Feed) Start(ctx context.Context, userID string) error {
	f.mu.Lock()
	if f.state != StateUninitialized {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.mu.Unlock()

	items, err := f.remote.ListRecent(ctx, f.limit)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := f.changes.Subscribe(streamCtx, userID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to changes: %w", err)
	}

	f.mu.Lock()
	if f.state != StateUninitialized {
		f.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	f.userID = userID
	f.items = items
	f.unread = 0
	for _, n := range items {
		if !n.Read {
			f.unread++
		}
	}
	f.cancel = cancel
	f.done = make(chan struct{})
	f.state = StateListening
	done := f.done
	f.mu.Unlock()

	go f.consume(events, done)
	f.logger.Debug("feed listening", "user", userID, "loaded", len(items))
	return nil
}

func (f *Feed) consume(events <-chan models.Notification, done chan struct{}) {
	defer close(done)
	for n := range events {
		f.insert(n)
	}
	f.teardown()
}

func (f *Feed) insert(n models.Notification) {
	f.mu.Lock()
	if f.state != StateListening {
		f.mu.Unlock()
		return
	}
	for _, existing := range f.items {
		if existing.ID == n.ID {
			f.mu.Unlock()
			return
		}
	}
	f.items = append([]models.Notification{n}, f.items...)
	if !n.Read {
		f.unread++
	}

	t := ToastFor(&n, f.toastDuration)
	id := t.ID
	f.toasts[id] = &activeToast{
		toast: t,
		timer: time.AfterFunc(t.Duration, func() { f.DismissToast(id) }),
	}
	f.order = append(f.order, id)
	toaster := f.toaster
	f.mu.Unlock()

	if toaster != nil {
		toaster.Show(t)
	}
}

// Stop ends the subscription and cancels pending toast timers. Calling it again is a no-op.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	f.teardown()
}

func (f *Feed) teardown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateTornDown {
		return
	}
	for _, at := range f.toasts {
		at.timer.Stop()
	}
	f.toasts = make(map[string]*activeToast)
	f.order = nil
	f.state = StateTornDown
	f.logger.Debug("feed torn down", "user", f.userID)
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Notifications returns a copy of the list, newest first.
func (f *Feed) Notifications() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Toasts returns the toasts currently on screen, oldest first.
func (f *Feed) Toasts() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Toast, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.toasts[id].toast)
	}
	return out
}

// DismissToast removes a toast before or when its timer fires.
func (f *Feed) DismissToast(id string) {
	f.mu.Lock()
	at, ok := f.toasts[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	at.timer.Stop()
	delete(f.toasts, id)
	for i, tid := range f.order {
		if tid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	toaster := f.toaster
	f.mu.Unlock()

	if toaster != nil {
		toaster.Dismiss(id)
	}
}

// MarkAsRead marks one notification read locally, then on the server.
// The local change is reverted if the server write fails.
func (f *Feed) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	if f.state != StateListening {
		f.mu.Unlock()
		return ErrNotStarted
	}
	idx := f.indexOf(id)
	if idx < 0 {
		f.mu.Unlock()
		return ErrUnknown
	}
	if f.items[idx].Read {
		f.mu.Unlock()
		return nil
	}
	op := f.applyRead([]string{id}, []string{id})
	f.mu.Unlock()

	return f.settle(op, f.remote.MarkAsRead(ctx, id))
}

// MarkAllAsRead marks every loaded notification read locally, then on the server.
func (f *Feed) MarkAllAsRead(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateListening {
		f.mu.Unlock()
		return ErrNotStarted
	}
	var unread, all []string
	for _, n := range f.items {
		all = append(all, n.ID)
		if !n.Read {
			unread = append(unread, n.ID)
		}
	}
	op := f.applyRead(unread, all)
	f.mu.Unlock()

	return f.settle(op, f.remote.MarkAllAsRead(ctx))
}

// pendingRead is one in-flight read write. flipped are the ids it changed
// locally; covers are the ids the server marks read when it succeeds.
type pendingRead struct {
	flipped []string
	covers  []string
}

// applyRead flips ids to read and records them as one pending operation. Caller holds mu.
func (f *Feed) applyRead(ids, covers []string) int {
	for _, id := range ids {
		if i := f.indexOf(id); i >= 0 && !f.items[i].Read {
			f.items[i].Read = true
			f.unread--
		}
	}
	f.nextOp++
	f.pending[f.nextOp] = pendingRead{flipped: ids, covers: covers}
	return f.nextOp
}

func (f *Feed) settle(op int, remoteErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.pending[op]
	delete(f.pending, op)

	if remoteErr == nil {
		for _, id := range p.covers {
			f.confirmed[id] = true
			// an overlapping failure may have reverted it meanwhile
			if i := f.indexOf(id); i >= 0 && !f.items[i].Read {
				f.items[i].Read = true
				f.unread--
			}
		}
		return nil
	}

	for _, id := range p.flipped {
		if f.confirmed[id] {
			continue
		}
		if i := f.indexOf(id); i >= 0 && f.items[i].Read {
			f.items[i].Read = false
			f.unread++
		}
	}
	f.logger.Warn("mark read failed, reverted", "count", len(p.flipped), "error", remoteErr)
	return fmt.Errorf("mark read: %w", remoteErr)
}

func (f *Feed) indexOf(id string) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}
