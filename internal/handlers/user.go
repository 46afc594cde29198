package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const (
	defaultSearchLimit = 8
	maxSearchLimit     = 20
)

// UserHandler handles HTTP requests related to profiles
type UserHandler struct {
	profileRepository repositories.ProfileRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profileRepo repositories.ProfileRepository) *UserHandler {
	return &UserHandler{profileRepository: profileRepo}
}

// RegisterProfileRoutes registers profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.POST("/profile", h.CreateProfile)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns another user's public profile
func (h *UserHandler) GetUser(c echo.Context) error {
	profile, err := h.profileRepository.GetProfileByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile.ToCompact()})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	profile, err := currentProfile(c, h.profileRepository)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile})
}

// CreateProfile claims a username for the authenticated identity
func (h *UserHandler) CreateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if _, err := h.profileRepository.GetProfileByID(ctx, userID); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Profile already exists")
	}
	taken, err := h.profileRepository.GetProfilesByUsernames(ctx, []string{req.Username})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(taken) > 0 {
		return echo.NewHTTPError(http.StatusConflict, "Username is already taken")
	}

	profile := &models.Profile{
		ID:          userID,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	}
	if err := h.profileRepository.CreateProfile(ctx, profile); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": profile})
}

// SearchUsers backs the mention autocomplete with a username prefix lookup
func (h *UserHandler) SearchUsers(c echo.Context) error {
	q := strings.TrimPrefix(strings.TrimSpace(c.QueryParam("q")), "@")
	if q == "" {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": []models.ProfileCompact{}})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}

	profiles, err := h.profileRepository.SearchByUsernamePrefix(c.Request().Context(), q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	out := make([]models.ProfileCompact, len(profiles))
	for i := range profiles {
		out[i] = profiles[i].ToCompact()
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": out})
}
