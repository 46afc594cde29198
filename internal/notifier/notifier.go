// Package notifier writes in-app notification rows for social actions and
// hands each new row to the push fan-out.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/push"
)

const (
	previewLength   = 100
	dispatchTimeout = 30 * time.Second
)

// maxUsernameLength bounds a handle; longer runs are not mentions.
const maxUsernameLength = 30

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_.@])@([A-Za-z0-9_.]{3,})`)

// NotificationStore persists notification rows.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// ProfileLookup resolves mentioned usernames.
type ProfileLookup interface {
	GetProfilesByUsernames(ctx context.Context, usernames []string) ([]models.Profile, error)
}

// Result is the outcome of one notification write.
// Skipped is set when the action targets the actor themself.
type Result struct {
	Notification *models.Notification
	Skipped      bool
	Err          error
}

type Writer struct {
	store      NotificationStore
	profiles   ProfileLookup
	dispatcher push.Dispatcher
	logger     *slog.Logger
	timeout    time.Duration

	wg sync.WaitGroup
}

// New creates a Writer. dispatcher may be nil, in which case rows are written without push.
func New(store NotificationStore, profiles ProfileLookup, dispatcher push.Dispatcher, logger *slog.Logger) *Writer {
	return &Writer{
		store:      store,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger.With("component", "notifier"),
		timeout:    dispatchTimeout,
	}
}

func actorData(actor *models.Profile) map[string]any {
	return map[string]any{
		models.DataActorID:       actor.ID,
		models.DataActorName:     actor.Name(),
		models.DataActorUsername: actor.Username,
	}
}

// NotifyLike tells the post owner that actor liked their post.
func (w *Writer) NotifyLike(ctx context.Context, actor *models.Profile, recipientID, postID string) Result {
	data := actorData(actor)
	data[models.DataPostID] = postID
	return w.write(ctx, actor, recipientID, models.NotificationLike, data)
}

// NotifyComment tells the post owner that actor commented, with a preview of the text.
func (w *Writer) NotifyComment(ctx context.Context, actor *models.Profile, recipientID, postID, text string) Result {
	data := actorData(actor)
	data[models.DataPostID] = postID
	data[models.DataCommentPreview] = Preview(text)
	return w.write(ctx, actor, recipientID, models.NotificationComment, data)
}

// NotifyFollow tells recipientID that actor started following them.
func (w *Writer) NotifyFollow(ctx context.Context, actor *models.Profile, recipientID string) Result {
	return w.write(ctx, actor, recipientID, models.NotificationFollow, actorData(actor))
}

// NotifyMentions writes one mention notification per distinct existing username in text.
// Unknown usernames are ignored. A failed lookup yields a single Result carrying the error.
func (w *Writer) NotifyMentions(ctx context.Context, actor *models.Profile, postID, text string) []Result {
	usernames := ExtractMentions(text)
	if len(usernames) == 0 {
		return nil
	}

	profiles, err := w.profiles.GetProfilesByUsernames(ctx, usernames)
	if err != nil {
		return []Result{{Err: fmt.Errorf("lookup mentioned profiles: %w", err)}}
	}

	preview := Preview(text)
	seen := make(map[string]bool, len(profiles))
	results := make([]Result, 0, len(profiles))
	for _, p := range profiles {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		data := actorData(actor)
		data[models.DataPostID] = postID
		data[models.DataCommentPreview] = preview
		results = append(results, w.write(ctx, actor, p.ID, models.NotificationMention, data))
	}
	return results
}

func (w *Writer) write(ctx context.Context, actor *models.Profile, recipientID, kind string, data map[string]any) Result {
	if actor.ID == recipientID {
		return Result{Skipped: true}
	}

	n := &models.Notification{
		UserID: recipientID,
		Type:   kind,
		Data:   data,
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		return Result{Err: fmt.Errorf("create %s notification: %w", kind, err)}
	}

	w.dispatch(n)
	return Result{Notification: n}
}

// dispatch sends the push for n in the background. The request context is
// not used: the action's response must not wait for, or cancel, delivery.
func (w *Writer) dispatch(n *models.Notification) {
	if w.dispatcher == nil {
		return
	}
	r := models.Render(n)
	payload := push.Payload{
		Title: r.Title,
		Body:  r.Message,
		URL:   r.URL,
		Tag:   n.ID,
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		res, err := w.dispatcher.Dispatch(ctx, n.UserID, payload)
		if err != nil {
			w.logger.Warn("push dispatch failed", "notification", n.ID, "user", n.UserID, "error", err)
			return
		}
		w.logger.Debug("push dispatched", "notification", n.ID, "successful", res.Successful, "failed", res.Failed)
	}()
}

// Wait blocks until in-flight push dispatches finish.
func (w *Writer) Wait() {
	w.wg.Wait()
}

// ExtractMentions returns the distinct @usernames in text, in order of first
// appearance. Comparison is case-insensitive; the first spelling is kept.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		name := strings.TrimRight(m[1], ".")
		if len(name) < 3 || len(name) > maxUsernameLength {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// Preview truncates text to 100 characters, adding an ellipsis when cut.
func Preview(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLength]) + "..."
}
