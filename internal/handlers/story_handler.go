package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const defaultStoryItemDuration = 5

// StoryHandler handles story-related HTTP requests
type StoryHandler struct {
	storyRepository   repositories.StoryRepository
	profileRepository repositories.ProfileRepository
	logger            *slog.Logger
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(storyRepo repositories.StoryRepository, profileRepo repositories.ProfileRepository, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		storyRepository:   storyRepo,
		profileRepository: profileRepo,
		logger:            logger,
	}
}

// RegisterStoryRoutes registers story-related routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.GET("/stories", h.GetStories)
	g.GET("/stories/:id", h.GetStory)
	g.POST("/stories", h.CreateStory)
	g.POST("/stories/:id/seen", h.MarkAsSeen)
	g.GET("/stories/:id/viewers", h.GetViewers)
}

// StoryResponse is the enriched story response
type StoryResponse struct {
	ID             string                `json:"id"`
	Author         models.ProfileCompact `json:"author"`
	Items          []models.StoryItem    `json:"items"`
	HasUnseenItems bool                  `json:"has_unseen_items"`
	ExpiresAt      string                `json:"expires_at"`
}

func (h *StoryHandler) author(c echo.Context, cache map[string]models.ProfileCompact, userID string) models.ProfileCompact {
	if p, ok := cache[userID]; ok {
		return p
	}
	var compact models.ProfileCompact
	if profile, err := h.profileRepository.GetProfileByID(c.Request().Context(), userID); err == nil {
		compact = profile.ToCompact()
	}
	cache[userID] = compact
	return compact
}

// GetStories returns active stories, the caller's own story separately
func (h *StoryHandler) GetStories(c echo.Context) error {
	ctx := c.Request().Context()
	currentUserID := getUserIDFromContext(c)

	stories, err := h.storyRepository.GetActiveStories(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	storyIDs := make([]string, len(stories))
	for i, s := range stories {
		storyIDs[i] = s.ID.Hex()
	}

	seen := map[string]bool{}
	if currentUserID != "" {
		if seen, err = h.storyRepository.GetViewedStoryIDs(ctx, currentUserID, storyIDs); err != nil {
			h.logger.Warn("load story views", "user", currentUserID, "error", err)
			seen = map[string]bool{}
		}
	}

	authors := make(map[string]models.ProfileCompact)
	var currentUserStory *StoryResponse
	otherStories := make([]StoryResponse, 0, len(stories))
	for _, s := range stories {
		resp := StoryResponse{
			ID:             s.ID.Hex(),
			Author:         h.author(c, authors, s.UserID),
			Items:          s.Items,
			HasUnseenItems: !seen[s.ID.Hex()],
			ExpiresAt:      s.ExpiresAt.Format(time.RFC3339),
		}
		if currentUserID != "" && s.UserID == currentUserID {
			currentUserStory = &resp
			continue
		}
		otherStories = append(otherStories, resp)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"stories":          otherStories,
			"currentUserStory": currentUserStory,
		},
	})
}

func (h *StoryHandler) activeStory(c echo.Context) (*models.Story, error) {
	story, err := h.storyRepository.GetStoryByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Story not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if story.Expired(time.Now()) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Story not found")
	}
	return story, nil
}

// GetStory returns a single active story
func (h *StoryHandler) GetStory(c echo.Context) error {
	story, err := h.activeStory(c)
	if err != nil {
		return err
	}

	hasUnseen := true
	if userID := getUserIDFromContext(c); userID != "" {
		seen, err := h.storyRepository.GetViewedStoryIDs(c.Request().Context(), userID, []string{story.ID.Hex()})
		if err == nil {
			hasUnseen = !seen[story.ID.Hex()]
		}
	}

	resp := StoryResponse{
		ID:             story.ID.Hex(),
		Author:         h.author(c, map[string]models.ProfileCompact{}, story.UserID),
		Items:          story.Items,
		HasUnseenItems: hasUnseen,
		ExpiresAt:      story.ExpiresAt.Format(time.RFC3339),
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"story": resp}})
}

// CreateStory creates a new story that expires after a day
func (h *StoryHandler) CreateStory(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	duration := req.Duration
	if duration == 0 {
		duration = defaultStoryItemDuration
	}
	story := &models.Story{
		UserID: currentUserID,
		Items: []models.StoryItem{{
			ID:        uuid.NewString(),
			Type:      req.Type,
			URL:       req.MediaURL,
			Duration:  duration,
			CreatedAt: time.Now(),
		}},
	}

	if err := h.storyRepository.CreateStory(c.Request().Context(), story); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"story": story}})
}

// MarkAsSeen records that the caller viewed a story. Repeated calls are no-ops.
func (h *StoryHandler) MarkAsSeen(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	story, err := h.activeStory(c)
	if err != nil {
		return err
	}
	if err := h.storyRepository.MarkViewed(c.Request().Context(), story.ID.Hex(), currentUserID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"seen": true}})
}

// GetViewers lists who has seen a story. Only the author may ask.
func (h *StoryHandler) GetViewers(c echo.Context) error {
	ctx := c.Request().Context()
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	story, err := h.activeStory(c)
	if err != nil {
		return err
	}
	if story.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the author can see viewers")
	}

	views, err := h.storyRepository.ListViewers(ctx, story.ID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	authors := make(map[string]models.ProfileCompact)
	viewers := make([]echo.Map, 0, len(views))
	for _, v := range views {
		viewers = append(viewers, echo.Map{
			"viewer":    h.author(c, authors, v.ViewerID),
			"viewed_at": v.ViewedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"viewers": viewers}})
}
