package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/push"
)

type memStore struct {
	mu   sync.Mutex
	rows []*models.Notification
	err  error
}

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = fmt.Sprintf("n%d", len(m.rows)+1)
	m.rows = append(m.rows, n)
	return nil
}

type memProfiles []models.Profile

func (m memProfiles) GetProfilesByUsernames(_ context.Context, usernames []string) ([]models.Profile, error) {
	var out []models.Profile
	for _, p := range m {
		for _, u := range usernames {
			if strings.EqualFold(p.Username, u) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	users    []string
	payloads []push.Payload
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, userID string, p push.Payload) (push.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, userID)
	d.payloads = append(d.payloads, p)
	return push.Result{Successful: 1}, d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	ali  = &models.Profile{ID: "u-ali", Username: "ali", DisplayName: "Ali Yılmaz"}
	ayse = &models.Profile{ID: "u-ayse", Username: "ayse"}
	mert = &models.Profile{ID: "u-mert", Username: "mert.k", DisplayName: "Mert"}
)

func TestSelfNotificationSuppressed(t *testing.T) {
	store := &memStore{}
	d := &recordingDispatcher{}
	w := New(store, memProfiles{*ali}, d, testLogger())
	ctx := context.Background()

	results := []Result{
		w.NotifyLike(ctx, ali, ali.ID, "p1"),
		w.NotifyComment(ctx, ali, ali.ID, "p1", "nice"),
		w.NotifyFollow(ctx, ali, ali.ID),
	}
	results = append(results, w.NotifyMentions(ctx, ali, "p1", "note to self @ali")...)
	w.Wait()

	for i, r := range results {
		if !r.Skipped || r.Notification != nil || r.Err != nil {
			t.Errorf("result %d = %+v, want skipped", i, r)
		}
	}
	if len(store.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(store.rows))
	}
	if len(d.users) != 0 {
		t.Errorf("dispatches = %d, want 0", len(d.users))
	}
}

func TestNotifyLike(t *testing.T) {
	store := &memStore{}
	d := &recordingDispatcher{}
	w := New(store, nil, d, testLogger())

	r := w.NotifyLike(context.Background(), ali, ayse.ID, "p1")
	w.Wait()

	if r.Err != nil || r.Skipped {
		t.Fatalf("result = %+v", r)
	}
	n := r.Notification
	if n.UserID != ayse.ID || n.Type != models.NotificationLike {
		t.Errorf("notification = %+v", n)
	}
	if got := n.DataString(models.DataActorName); got != "Ali Yılmaz" {
		t.Errorf("actor_name = %q, want %q", got, "Ali Yılmaz")
	}
	if got := n.DataString(models.DataPostID); got != "p1" {
		t.Errorf("post_id = %q, want %q", got, "p1")
	}
	if len(d.payloads) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(d.payloads))
	}
	p := d.payloads[0]
	if p.Title != "Yeni beğeni" || p.URL != "/gonderi/p1" {
		t.Errorf("payload = %+v", p)
	}
	if d.users[0] != ayse.ID {
		t.Errorf("dispatched to %q, want %q", d.users[0], ayse.ID)
	}
}

func TestNotifyCommentPreview(t *testing.T) {
	store := &memStore{}
	w := New(store, nil, nil, testLogger())

	long := strings.Repeat("ş", 150)
	r := w.NotifyComment(context.Background(), ali, ayse.ID, "p1", long)
	if r.Err != nil {
		t.Fatalf("NotifyComment: %v", r.Err)
	}
	preview := r.Notification.DataString(models.DataCommentPreview)
	if want := strings.Repeat("ş", 100) + "..."; preview != want {
		t.Errorf("preview length = %d runes, want 103", len([]rune(preview)))
	}
}

func TestNotifyFollowHasNoPost(t *testing.T) {
	w := New(&memStore{}, nil, nil, testLogger())
	r := w.NotifyFollow(context.Background(), mert, ayse.ID)
	if r.Err != nil {
		t.Fatalf("NotifyFollow: %v", r.Err)
	}
	if _, ok := r.Notification.Data[models.DataPostID]; ok {
		t.Error("follow notification should not carry post_id")
	}
	if got := models.Render(r.Notification).URL; got != "/profil/mert.k" {
		t.Errorf("url = %q, want %q", got, "/profil/mert.k")
	}
}

func TestStoreErrorReturned(t *testing.T) {
	dbErr := errors.New("insert failed")
	d := &recordingDispatcher{}
	w := New(&memStore{err: dbErr}, nil, d, testLogger())

	r := w.NotifyLike(context.Background(), ali, ayse.ID, "p1")
	w.Wait()
	if !errors.Is(r.Err, dbErr) {
		t.Fatalf("err = %v, want %v", r.Err, dbErr)
	}
	if len(d.users) != 0 {
		t.Error("push dispatched for a row that was never written")
	}
}

func TestDispatchFailureNotSurfaced(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("push down")}
	w := New(&memStore{}, nil, d, testLogger())

	r := w.NotifyLike(context.Background(), ali, ayse.ID, "p1")
	w.Wait()
	if r.Err != nil || r.Notification == nil {
		t.Fatalf("result = %+v, want written notification", r)
	}
}

func TestDoubleMention(t *testing.T) {
	store := &memStore{}
	d := &recordingDispatcher{}
	w := New(store, memProfiles{*ali, *ayse, *mert}, d, testLogger())

	results := w.NotifyMentions(context.Background(), ali, "p9", "@ayse ve @mert.k bakın! @Ayse @ghost")
	w.Wait()

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if len(store.rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(store.rows))
	}
	got := map[string]bool{}
	for _, n := range store.rows {
		if n.Type != models.NotificationMention {
			t.Errorf("type = %q, want mention", n.Type)
		}
		got[n.UserID] = true
	}
	if !got[ayse.ID] || !got[mert.ID] {
		t.Errorf("recipients = %v", got)
	}
	if len(d.users) != 2 {
		t.Errorf("dispatches = %d, want 2", len(d.users))
	}
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"no mentions here", nil},
		{"@ali hi", []string{"ali"}},
		{"hi @ali and @ALI", []string{"ali"}},
		{"cc @mert.k.", []string{"mert.k"}},
		{"mail me at ali@example.com", nil},
		{"@ab too short", nil},
		{"(@ayse) @veli_01", []string{"ayse", "veli_01"}},
		{"hi @" + strings.Repeat("a", 30) + "X", nil},
		{"hi @" + strings.Repeat("a", 30) + ".", []string{strings.Repeat("a", 30)}},
	}
	for _, tt := range tests {
		got := ExtractMentions(tt.text)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("ExtractMentions(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

// goneSender rejects one endpoint as permanently gone.
type goneSender struct{ gone string }

func (s goneSender) Send(_ context.Context, sub *models.PushSubscription, _ push.Payload) error {
	if sub.Endpoint == s.gone {
		return push.ErrSubscriptionGone
	}
	return nil
}

type subStore struct {
	mu   sync.Mutex
	subs []models.PushSubscription
}

func (s *subStore) ListByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *subStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.ID == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	return nil
}

type resultRecorder struct {
	push.Dispatcher
	mu  sync.Mutex
	got []push.Result
}

func (r *resultRecorder) Dispatch(ctx context.Context, userID string, p push.Payload) (push.Result, error) {
	res, err := r.Dispatcher.Dispatch(ctx, userID, p)
	r.mu.Lock()
	r.got = append(r.got, res)
	r.mu.Unlock()
	return res, err
}

// A like on a post whose owner has one live and one stale endpoint.
func TestLikeScenario(t *testing.T) {
	subs := &subStore{subs: []models.PushSubscription{
		{ID: "s1", UserID: ayse.ID, Endpoint: "https://push.example/live", Platform: models.PlatformWeb},
		{ID: "s2", UserID: ayse.ID, Endpoint: "https://push.example/stale", Platform: models.PlatformWeb},
	}}
	svc := push.NewService(subs, testLogger(), push.WithWebSender(goneSender{gone: "https://push.example/stale"}))
	rec := &resultRecorder{Dispatcher: svc}
	store := &memStore{}
	w := New(store, nil, rec, testLogger())

	r := w.NotifyLike(context.Background(), ali, ayse.ID, "p1")
	w.Wait()

	if r.Err != nil {
		t.Fatalf("NotifyLike: %v", r.Err)
	}
	if len(store.rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(store.rows))
	}
	if len(rec.got) != 1 || rec.got[0].Successful != 1 || rec.got[0].Failed != 1 {
		t.Fatalf("push results = %+v, want one 1/1", rec.got)
	}
	if len(subs.subs) != 1 || subs.subs[0].ID != "s1" {
		t.Errorf("remaining subscriptions = %+v, want only s1", subs.subs)
	}
}
