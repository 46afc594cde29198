package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/agara/backend/internal/middleware"
	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/notifier"
	"github.com/anonto42/agara/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// Notifier writes notifications for social actions. *notifier.Writer implements it.
type Notifier interface {
	NotifyLike(ctx context.Context, actor *models.Profile, recipientID, postID string) notifier.Result
	NotifyComment(ctx context.Context, actor *models.Profile, recipientID, postID, text string) notifier.Result
	NotifyFollow(ctx context.Context, actor *models.Profile, recipientID string) notifier.Result
	NotifyMentions(ctx context.Context, actor *models.Profile, postID, text string) []notifier.Result
}

func getUserIDFromContext(c echo.Context) string {
	id, _ := c.Get(middleware.UserIDKey).(string)
	return id
}

// currentProfile loads the authenticated user's profile.
func currentProfile(c echo.Context, profiles repositories.ProfileRepository) (*models.Profile, error) {
	userID := getUserIDFromContext(c)
	if userID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	profile, err := profiles.GetProfileByID(c.Request().Context(), userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Profile not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return profile, nil
}

// logNotify records a failed notification write. The action itself already succeeded.
func logNotify(logger *slog.Logger, kind string, results ...notifier.Result) {
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("notification not written", "type", kind, "error", r.Err)
		}
	}
}
