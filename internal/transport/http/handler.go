// Package http provides the HTTP transport for the chat engine: the pull
// transport's submit/poll endpoints and the admin session API.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cloudbridge/chatcore/internal/service"
)

// Handler holds the HTTP handlers.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers all chat routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/chat/messages", h.SubmitMessage)
	e.GET("/chat/messages", h.PollMessages)

	e.GET("/chat/sessions", h.ListSessions)
	e.GET("/chat/sessions/:session_id", h.GetSession)
	e.POST("/chat/sessions/:session_id/terminate", h.TerminateSession)
	e.DELETE("/chat/sessions/:session_id", h.DeleteSession)

	e.GET("/health", h.Health)
}

// Health returns a liveness response.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// userID reads the identity placed by the auth middleware upstream.
func userID(c echo.Context) string {
	return c.Request().Header.Get("X-User-ID")
}
