package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/agara/backend/internal/realtime"
	"github.com/labstack/echo/v4"
)

// RealtimeHandler streams a user's new notifications over a websocket
type RealtimeHandler struct {
	hub    *realtime.Hub
	logger *slog.Logger
}

func NewRealtimeHandler(hub *realtime.Hub, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, logger: logger}
}

func (h *RealtimeHandler) RegisterRealtimeRoutes(g *echo.Group) {
	g.GET("/realtime/notifications", h.Stream)
}

// Stream holds the connection open until the client leaves.
func (h *RealtimeHandler) Stream(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if !c.IsWebSocket() {
		return echo.NewHTTPError(http.StatusBadRequest, "Websocket upgrade required")
	}
	// Accept writes its own error response.
	if err := h.hub.Serve(c.Response(), c.Request(), userID); err != nil {
		h.logger.Warn("websocket accept failed", "user", userID, "error", err)
	}
	return nil
}
