package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// ListSessions returns filtered, paginated sessions for the admin dashboard.
// GET /chat/sessions?user_id=&status=&client_name=&limit=&offset=
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	filter := store.SessionFilter{
		UserID:     c.QueryParam("user_id"),
		Status:     domain.SessionStatus(c.QueryParam("status")),
		ClientName: c.QueryParam("client_name"),
		Limit:      limit,
		Offset:     offset,
	}

	sessions, total, err := h.svc.ListSessions(ctx, filter)
	if err != nil {
		log.Printf("ERROR: failed to list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    total,
	})
}

// GetSession returns one session.
// GET /chat/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	session, err := h.svc.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}
	return c.JSON(http.StatusOK, session)
}

// TerminateSession ends a session but keeps its transcript.
// POST /chat/sessions/:session_id/terminate
func (h *Handler) TerminateSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.svc.TerminateSession(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to terminate session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to terminate session"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "terminated"})
}

// DeleteSession purges a session and its transcript.
// DELETE /chat/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.svc.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to delete session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}
	return c.NoContent(http.StatusNoContent)
}
