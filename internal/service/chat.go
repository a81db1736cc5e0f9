package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// SendRequest is one inbound user message.
type SendRequest struct {
	SessionID  string
	UserID     string
	ClientName string
	Content    string
}

// SendResult carries the persisted pair for one exchange. Reply is the
// assistant message on success or the error-typed transcript entry on AI
// failure, in which case AIErr holds the retryable/fatal classification.
type SendResult struct {
	Session     *domain.Session
	UserMessage *domain.Message
	Reply       *domain.Message
	AIErr       *domain.AIServiceError
}

// historyLimit bounds how much transcript is handed to the responder.
const historyLimit = 20

// SendMessage runs the message pipeline: validate, resolve the session,
// persist the user message, invoke the responder, persist the reply (or an
// error entry), and refresh session activity.
//
// Validation failures short-circuit before any persistence. An AI failure is
// not an error return: the transcript stays consistent and the caller reads
// the classification from the result.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.UserID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if req.Content == "" {
		return nil, &domain.ValidationError{Field: "content", Reason: "is required"}
	}
	if utf8.RuneCountInString(req.Content) > domain.MaxContentLength {
		return nil, &domain.ValidationError{Field: "content", Reason: "exceeds 10000 characters"}
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.policy != nil {
		decision, err := s.policy.Evaluate(ctx, map[string]interface{}{
			"session_status": string(session.Status),
			"user_id":        req.UserID,
			"content":        req.Content,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate admission policy: %w", err)
		}
		if decision != "allow" {
			return nil, &domain.ValidationError{Field: "content", Reason: "rejected by admission policy"}
		}
	}

	now := time.Now()
	userMsg := &domain.Message{
		ID:        newMessageID(),
		SessionID: session.ID,
		Type:      domain.MessageTypeUser,
		Content:   req.Content,
		Status:    domain.MessageStatusSent,
		CreatedAt: now,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.recentHistory(ctx, session.ID)
	if err != nil {
		log.Printf("WARN: failed to load history for session %s: %v", session.ID, err)
		history = nil
	}

	result := &SendResult{Session: session, UserMessage: userMsg}

	aiCtx, cancel := context.WithTimeout(ctx, s.config.AITimeout)
	reply, aiErr := s.responder.GenerateReply(aiCtx, session, history, req.Content)
	cancel()

	if aiErr != nil {
		var svcErr *domain.AIServiceError
		if !errors.As(aiErr, &svcErr) {
			svcErr = &domain.AIServiceError{Retryable: false, Err: aiErr}
		}
		errMsg := &domain.Message{
			ID:        newMessageID(),
			SessionID: session.ID,
			Type:      domain.MessageTypeError,
			Content:   "The assistant could not respond: " + svcErr.Err.Error(),
			Metadata:  map[string]string{"retryable": fmt.Sprintf("%t", svcErr.Retryable)},
			Status:    domain.MessageStatusFailed,
			CreatedAt: time.Now(),
		}
		if err := s.messages.Create(ctx, errMsg); err != nil {
			return nil, fmt.Errorf("failed to save error message: %w", err)
		}
		result.Reply = errMsg
		result.AIErr = svcErr
	} else {
		assistantMsg := &domain.Message{
			ID:        newMessageID(),
			SessionID: session.ID,
			Type:      domain.MessageTypeAssistant,
			Content:   reply,
			Status:    domain.MessageStatusDelivered,
			CreatedAt: time.Now(),
		}
		if err := s.messages.Create(ctx, assistantMsg); err != nil {
			return nil, fmt.Errorf("failed to save assistant message: %w", err)
		}
		result.Reply = assistantMsg
	}

	if err := s.sessions.UpdateLastActivity(ctx, session.ID); err != nil {
		log.Printf("WARN: failed to update session activity for %s: %v", session.ID, err)
	}

	return result, nil
}

// resolveSession loads the declared session or creates a fresh one, keeping
// "create session" and "send first message" atomic for the caller.
func (s *Service) resolveSession(ctx context.Context, req SendRequest) (*domain.Session, error) {
	if req.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, req.SessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
	}

	now := time.Now()
	session := &domain.Session{
		ID:             req.SessionID,
		UserID:         req.UserID,
		ClientName:     req.ClientName,
		Status:         domain.SessionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	if session.ID == "" {
		session.ID = newSessionID()
	}
	if s.config.DefaultSessionTTL > 0 {
		t := now.Add(s.config.DefaultSessionTTL)
		session.ExpiresAt = &t
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// recentHistory returns the latest transcript slice in ascending order.
func (s *Service) recentHistory(ctx context.Context, sessionID string) ([]domain.Message, error) {
	latest, err := s.messages.GetLatestBySessionID(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}
	domain.SortMessages(latest)
	return latest, nil
}

// History returns a page of the session transcript in ascending order.
func (s *Service) History(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error) {
	return s.messages.GetBySessionID(ctx, sessionID, limit, offset)
}

// MessagesSince returns the transcript entries created after since, ascending.
func (s *Service) MessagesSince(ctx context.Context, sessionID string, since time.Time) ([]domain.Message, error) {
	msgs, err := s.messages.GetBySessionID(ctx, sessionID, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []domain.Message
	for _, m := range msgs {
		if m.CreatedAt.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Latest returns the newest messages, most-recent-first.
func (s *Service) Latest(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	return s.messages.GetLatestBySessionID(ctx, sessionID, limit)
}

// Search finds messages in a session, most-recent-first.
func (s *Service) Search(ctx context.Context, sessionID, query string, limit int) ([]domain.Message, error) {
	return s.messages.Search(ctx, sessionID, query, limit)
}

// MarkRead flips a message to read.
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	return s.messages.UpdateStatus(ctx, messageID, domain.MessageStatusRead)
}

func newSessionID() string {
	return "sess_" + uuid.New().String()[:8]
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
