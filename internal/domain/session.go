// Package domain defines the core chat types shared across the engine.
package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusInactive   SessionStatus = "inactive"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

const (
	// MaxUserIDLength bounds the owner identifier.
	MaxUserIDLength = 100
	// MaxClientNameLength bounds the consulting client name.
	MaxClientNameLength = 255
)

// Session represents a bounded conversation between one user and the assistant.
type Session struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	ClientName     string            `json:"client_name,omitempty"`
	Context        string            `json:"context,omitempty"`
	Status         SessionStatus     `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	ExpiresAt      *time.Time        `json:"expires_at,omitempty"`
}

// Validate checks the session invariants.
func (s *Session) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if s.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if len(s.UserID) > MaxUserIDLength {
		return &ValidationError{Field: "user_id", Reason: "exceeds 100 characters"}
	}
	if len(s.ClientName) > MaxClientNameLength {
		return &ValidationError{Field: "client_name", Reason: "exceeds 255 characters"}
	}
	switch s.Status {
	case SessionStatusActive, SessionStatusInactive, SessionStatusExpired, SessionStatusTerminated:
	default:
		return &ValidationError{Field: "status", Reason: "must be one of active, inactive, expired, terminated"}
	}
	return nil
}

// IsExpired reports whether the session's TTL deadline has passed.
// A session with no deadline never expires by TTL.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// IsActive reports whether the session accepts new messages.
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive && !s.IsExpired()
}

// Touch refreshes the activity timestamps.
func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now
	s.UpdatedAt = now
}

// SetExpiration sets the TTL deadline relative to now.
func (s *Session) SetExpiration(d time.Duration) {
	t := time.Now().Add(d)
	s.ExpiresAt = &t
	s.UpdatedAt = time.Now()
}

// Clone returns an independent copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	cp := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		cp.ExpiresAt = &t
	}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
