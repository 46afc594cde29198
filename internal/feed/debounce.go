package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
)

// Debouncer runs only the last function triggered within its window.
type Debouncer struct {
	wait time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Trigger cancels any pending call and schedules fn after the wait.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, fn)
}

// Stop cancels the pending call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// UserSearcher looks up profiles by username prefix.
type UserSearcher interface {
	SearchUsers(ctx context.Context, prefix string) ([]models.ProfileCompact, error)
}

const mentionSearchDelay = 300 * time.Millisecond

// MentionSuggester backs @mention autocomplete: it searches for the partial
// username after the last '@' once typing pauses.
type MentionSuggester struct {
	search   UserSearcher
	debounce *Debouncer
	logger   *slog.Logger
}

func NewMentionSuggester(search UserSearcher, logger *slog.Logger) *MentionSuggester {
	return &MentionSuggester{
		search:   search,
		debounce: NewDebouncer(mentionSearchDelay),
		logger:   logger,
	}
}

// Update is called on every edit of text. results receives the suggestions of
// the last edit only; it is not called when no mention is being typed.
func (s *MentionSuggester) Update(ctx context.Context, text string, results func([]models.ProfileCompact)) {
	prefix, ok := partialMention(text)
	if !ok {
		s.debounce.Stop()
		return
	}
	s.debounce.Trigger(func() {
		profiles, err := s.search.SearchUsers(ctx, prefix)
		if err != nil {
			s.logger.Warn("mention search failed", "prefix", prefix, "error", err)
			return
		}
		results(profiles)
	})
}

func (s *MentionSuggester) Close() {
	s.debounce.Stop()
}

// partialMention returns the username fragment being typed at the end of text.
func partialMention(text string) (string, bool) {
	at := strings.LastIndexByte(text, '@')
	if at < 0 {
		return "", false
	}
	if at > 0 && !strings.ContainsRune(" \n\t(", rune(text[at-1])) {
		return "", false
	}
	frag := text[at+1:]
	if frag == "" || len(frag) > 30 {
		return "", false
	}
	for _, r := range frag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '.') {
			return "", false
		}
	}
	return frag, true
}
