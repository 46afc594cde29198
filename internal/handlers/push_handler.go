package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/push"
	"github.com/anonto42/agara/backend/internal/repositories"
	"github.com/anonto42/agara/backend/internal/subscription"
	"github.com/labstack/echo/v4"
)

// PushSender runs the fan-out for one recipient. *push.Service implements it.
type PushSender interface {
	Send(ctx context.Context, userID string, payload push.Payload) (push.Result, error)
}

// PushHandler exposes the delivery endpoint and subscription management
type PushHandler struct {
	sender         PushSender
	subscriptions  subscription.Store
	vapidPublicKey string
	logger         *slog.Logger
}

// NewPushHandler creates a new PushHandler
func NewPushHandler(sender PushSender, subs subscription.Store, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		sender:         sender,
		subscriptions:  subs,
		vapidPublicKey: vapidPublicKey,
		logger:         logger.With("component", "push_handler"),
	}
}

// RegisterSendRoute mounts the service-to-service delivery endpoint. Guard g with the service key.
func (h *PushHandler) RegisterSendRoute(g *echo.Group) {
	g.POST("/send", h.Send)
}

// RegisterSubscriptionRoutes registers the per-user subscription routes
func (h *PushHandler) RegisterSubscriptionRoutes(g *echo.Group) {
	g.GET("/push/vapid-public-key", h.GetVAPIDPublicKey)
	g.GET("/push/subscriptions", h.GetStatus)
	g.POST("/push/subscriptions", h.Subscribe)
	g.DELETE("/push/subscriptions", h.Unsubscribe)
}

// Send fans a payload out to every subscription of the recipient.
// The response bodies are plain {error} / {message, successful, failed} objects, not the API envelope.
func (h *PushHandler) Send(c echo.Context) error {
	var req push.SendRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Payload == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": push.ErrInvalidRequest.Error()})
	}

	res, err := h.sender.Send(c.Request().Context(), req.UserID, *req.Payload)
	if err != nil {
		if errors.Is(err, push.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		h.logger.Error("push send failed", "user", req.UserID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load subscriptions"})
	}
	if res.NoSubscriptions {
		return c.JSON(http.StatusOK, echo.Map{"message": "No subscriptions found for user"})
	}

	return c.JSON(http.StatusOK, push.SendResponse{
		Message:    "Push notifications sent",
		Successful: res.Successful,
		Failed:     res.Failed,
	})
}

// GetVAPIDPublicKey returns the application server key browsers subscribe with
func (h *PushHandler) GetVAPIDPublicKey(c echo.Context) error {
	if h.vapidPublicKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Push notifications are not configured")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"publicKey": h.vapidPublicKey}})
}

// Subscribe stores the subscription the client created. Re-posting the same endpoint updates it.
func (h *PushHandler) Subscribe(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.SubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	row, err := subscription.ForRequest(req, h.subscriptions, h.vapidPublicKey, h.logger).Subscribe(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, subscription.ErrMissingKeys) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": row})
}

// Unsubscribe forgets an endpoint. Unknown endpoints succeed too.
func (h *PushHandler) Unsubscribe(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UnsubscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	mgr := subscription.NewManager(subscription.ForEndpoint(req.Endpoint), h.subscriptions, h.vapidPublicKey, h.logger)
	if _, err := mgr.Unsubscribe(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"subscribed": false}})
}

// GetStatus reports whether endpoint ?endpoint= is stored for the caller
func (h *PushHandler) GetStatus(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	endpoint := c.QueryParam("endpoint")
	if endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	_, err = h.subscriptions.GetByUserEndpoint(c.Request().Context(), userID, endpoint)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"subscribed": true}})
	case errors.Is(err, repositories.ErrNotFound):
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"subscribed": false}})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
