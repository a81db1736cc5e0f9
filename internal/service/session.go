package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// GetSession returns a session by ID.
func (s *Service) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// SessionsForUser returns all of a user's sessions, newest first.
func (s *Service) SessionsForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.sessions.GetByUserID(ctx, userID)
}

// ListSessions applies filters and paginates, for the admin dashboard.
func (s *Service) ListSessions(ctx context.Context, filter store.SessionFilter) ([]domain.Session, int, error) {
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sessions.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// TerminateSession ends a session explicitly. The transcript is kept.
func (s *Service) TerminateSession(ctx context.Context, id string) error {
	return s.sessions.UpdateStatus(ctx, id, domain.SessionStatusTerminated)
}

// ExtendSession pushes a session's TTL deadline out by d from now.
func (s *Service) ExtendSession(ctx context.Context, id string, d time.Duration) error {
	return s.sessions.SetExpiration(ctx, id, d)
}

// DeleteSession purges a session and cascades to its transcript.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.messages.DeleteBySessionID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session messages: %w", err)
	}
	return s.sessions.Delete(ctx, id)
}
