package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/service"
)

// SubmitRequest is the pull transport's submit body.
type SubmitRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	Content    string `json:"content"`
	ClientName string `json:"client_name,omitempty"`
}

// SubmitResponse mirrors the wire contract for POST /chat/messages.
type SubmitResponse struct {
	MessageID string `json:"message_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// SubmitMessage accepts one user message and runs the full exchange.
// POST /chat/messages
func (h *Handler) SubmitMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, SubmitResponse{Success: false, Error: "invalid request body"})
	}

	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, SubmitResponse{Success: false, Error: "missing user identity"})
	}

	result, err := h.svc.SendMessage(ctx, service.SendRequest{
		SessionID:  req.SessionID,
		UserID:     uid,
		ClientName: req.ClientName,
		Content:    req.Content,
	})
	if err != nil {
		if domain.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, SubmitResponse{Success: false, Error: err.Error()})
		}
		log.Printf("ERROR: failed to send message: %v", err)
		return c.JSON(http.StatusInternalServerError, SubmitResponse{Success: false, Error: "failed to send message"})
	}

	resp := SubmitResponse{
		MessageID: result.UserMessage.ID,
		SessionID: result.Session.ID,
		Success:   result.AIErr == nil,
	}
	if result.AIErr != nil {
		resp.Error = result.AIErr.Error()
		resp.Retryable = result.AIErr.Retryable
	}
	return c.JSON(http.StatusOK, resp)
}

// PollMessages returns a session's transcript entries after the since mark,
// in ascending order.
// GET /chat/messages?session_id=...&since=...
func (h *Handler) PollMessages(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	if _, err := h.svc.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}

	since, err := parseSince(c.QueryParam("since"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid since parameter"})
	}

	messages, err := h.svc.MessagesSince(ctx, sessionID, since)
	if err != nil {
		log.Printf("ERROR: failed to get messages: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get messages"})
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// parseSince accepts unix milliseconds or RFC 3339. Empty means everything.
func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
