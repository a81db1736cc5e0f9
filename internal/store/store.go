// Package store defines the repository contracts for sessions and messages.
package store

import (
	"context"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// SessionFilter narrows List/Count results before pagination.
type SessionFilter struct {
	UserID        string
	Status        domain.SessionStatus
	ClientName    string // substring match
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Offset        int
	Limit         int
}

// SessionStore is the repository contract for chat sessions.
//
// Lookups return domain.ErrSessionNotFound for missing IDs; Create returns
// domain.ErrAlreadyExists instead of silently overwriting.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error

	GetByUserID(ctx context.Context, userID string) ([]domain.Session, error)
	GetActiveByUserID(ctx context.Context, userID string) ([]domain.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.Session, error)
	Count(ctx context.Context, filter SessionFilter) (int, error)

	// GetExpiredSessions returns TTL-expired sessions, soonest-expired first.
	GetExpiredSessions(ctx context.Context) ([]domain.Session, error)
	// GetInactiveSessions returns sessions idle longer than threshold,
	// longest-idle first.
	GetInactiveSessions(ctx context.Context, threshold time.Duration) ([]domain.Session, error)
	DeleteExpiredSessions(ctx context.Context) (int, error)
	DeleteInactiveSessions(ctx context.Context, threshold time.Duration) (int, error)

	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error
	UpdateLastActivity(ctx context.Context, id string) error
	SetExpiration(ctx context.Context, id string, d time.Duration) error
}

// MessageFilter narrows message List/Count results before pagination.
type MessageFilter struct {
	SessionID     string
	Type          domain.MessageType
	Status        domain.MessageStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Offset        int
	Limit         int
}

// MessageStore is the repository contract for chat messages.
//
// Every read path preserves transcript order: ascending CreatedAt with
// insertion order breaking ties, except the most-recent-first queries.
type MessageStore interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	Delete(ctx context.Context, id string) error

	GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error)
	GetByType(ctx context.Context, sessionID string, msgType domain.MessageType) ([]domain.Message, error)
	GetByStatus(ctx context.Context, sessionID string, status domain.MessageStatus) ([]domain.Message, error)
	List(ctx context.Context, filter MessageFilter) ([]domain.Message, error)
	Count(ctx context.Context, filter MessageFilter) (int, error)

	// Search finds messages whose content contains query (case-insensitive),
	// most-recent-first, capped by limit.
	Search(ctx context.Context, sessionID, query string, limit int) ([]domain.Message, error)
	// GetLatestBySessionID returns the latest messages, most-recent-first.
	GetLatestBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
	// DeleteBySessionID removes a session's transcript and returns the count.
	DeleteBySessionID(ctx context.Context, sessionID string) (int, error)
}
