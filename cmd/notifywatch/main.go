// Command notifywatch follows a user's notifications from a terminal: it loads
// the recent list, then prints a line for every live notification.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anonto42/agara/backend/internal/agent"
	"github.com/anonto42/agara/backend/internal/feed"
	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/realtime"
	"github.com/anonto42/agara/backend/pkg/logging"
)

type printToaster struct {
	w io.Writer
}

// Show renders a toast the way the push agent would display it.
func (p printToaster) Show(t feed.Toast) {
	n := agent.BuildNotification(agent.Message{Title: t.Title, Body: t.Message, URL: t.URL, Tag: t.ID})
	fmt.Fprintf(p.w, "[%s] %s: %s (%s)\n", t.Type, n.Title, n.Body, n.Data["url"])
}

func (p printToaster) Dismiss(string) {}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "API base URL")
	wsURL := flag.String("ws", "", "realtime URL (default derived from -api)")
	token := flag.String("token", os.Getenv("AGARA_TOKEN"), "bearer access token")
	limit := flag.Int("limit", feed.DefaultLimit, "notifications to load first")
	readAll := flag.Bool("read-all", false, "mark everything read after loading")
	mention := flag.String("mention", "", "print username suggestions for a partial @mention and exit")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger := logging.Setup(*logLevel)
	if *token == "" {
		fmt.Fprintln(os.Stderr, "notifywatch: -token or AGARA_TOKEN is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	remote := feed.NewHTTPRemote(*apiURL, *token)

	if *mention != "" {
		os.Exit(suggest(ctx, remote, logger, *mention))
	}

	if *wsURL == "" {
		*wsURL = realtimeURL(*apiURL)
	}
	f := feed.New(remote, &realtime.Dialer{URL: *wsURL, Token: *token, Logger: logger}, logger,
		feed.WithLimit(*limit),
		feed.WithToaster(printToaster{w: os.Stdout}),
	)
	if err := f.Start(ctx, "me"); err != nil {
		fmt.Fprintln(os.Stderr, "notifywatch:", err)
		os.Exit(1)
	}
	defer f.Stop()

	for _, n := range f.Notifications() {
		r := models.Render(&n)
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %s  %s\n", mark, n.CreatedAt.Format(time.DateTime), r.Message)
	}
	fmt.Printf("%d unread\n", f.UnreadCount())

	if *readAll {
		if err := f.MarkAllAsRead(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "notifywatch: mark all read:", err)
		}
	}

	<-ctx.Done()
}

func suggest(ctx context.Context, remote *feed.HTTPRemote, logger *slog.Logger, text string) int {
	s := feed.NewMentionSuggester(remote, logger)
	defer s.Close()

	done := make(chan []models.ProfileCompact, 1)
	s.Update(ctx, text, func(p []models.ProfileCompact) { done <- p })

	select {
	case profiles := <-done:
		for _, p := range profiles {
			fmt.Printf("@%s  %s\n", p.Username, p.DisplayName)
		}
		return 0
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "notifywatch: no suggestions")
		return 1
	case <-ctx.Done():
		return 1
	}
}

// realtimeURL turns http(s)://host into ws(s)://host/api/v1/realtime/notifications.
func realtimeURL(api string) string {
	u := strings.TrimRight(api, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v1/realtime/notifications"
}
