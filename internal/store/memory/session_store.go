// Package memory provides the reference in-memory store implementations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// SessionStore keeps sessions in a map guarded by a single RWMutex.
// Reads run concurrently with each other; writers are exclusive.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

var _ store.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

// Create stores a new session. Existing IDs are never overwritten.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrAlreadyExists)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// GetByID returns a copy of the session or domain.ErrSessionNotFound.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return sess.Clone(), nil
}

// Update replaces a stored session.
func (s *SessionStore) Update(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionNotFound)
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// GetByUserID returns all sessions owned by userID, newest first.
func (s *SessionStore) GetByUserID(ctx context.Context, userID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			result = append(result, *sess.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetActiveByUserID returns the user's sessions that still accept messages.
func (s *SessionStore) GetActiveByUserID(ctx context.Context, userID string) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive() {
			result = append(result, *sess.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// List applies the filter, sorts by creation time ascending and paginates.
// An offset beyond the result set yields an empty page.
func (s *SessionStore) List(ctx context.Context, filter store.SessionFilter) ([]domain.Session, error) {
	s.mu.RLock()
	matched := s.match(filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []domain.Session{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of sessions matching the filter, ignoring pagination.
func (s *SessionStore) Count(ctx context.Context, filter store.SessionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(filter)), nil
}

// match collects filtered copies. Callers must hold at least the read lock.
func (s *SessionStore) match(filter store.SessionFilter) []domain.Session {
	var result []domain.Session
	for _, sess := range s.sessions {
		if filter.UserID != "" && sess.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if filter.ClientName != "" && !strings.Contains(strings.ToLower(sess.ClientName), strings.ToLower(filter.ClientName)) {
			continue
		}
		if filter.CreatedAfter != nil && sess.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && sess.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		result = append(result, *sess.Clone())
	}
	return result
}

// GetExpiredSessions returns TTL-expired sessions, soonest-expired first, so a
// sweep handles the worst offenders before the rest.
func (s *SessionStore) GetExpiredSessions(ctx context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Session
	for _, sess := range s.sessions {
		if sess.IsExpired() {
			result = append(result, *sess.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(*result[j].ExpiresAt)
	})
	return result, nil
}

// GetInactiveSessions returns sessions idle longer than threshold, longest-idle first.
func (s *SessionStore) GetInactiveSessions(ctx context.Context, threshold time.Duration) ([]domain.Session, error) {
	cutoff := time.Now().Add(-threshold)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Session
	for _, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			result = append(result, *sess.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivityAt.Before(result[j].LastActivityAt)
	})
	return result, nil
}

// DeleteExpiredSessions removes every TTL-expired session and returns the count.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteInactiveSessions removes sessions idle longer than threshold.
func (s *SessionStore) DeleteInactiveSessions(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, sess := range s.sessions {
		if sess.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// UpdateStatus transitions a session's status.
func (s *SessionStore) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	sess.Status = status
	sess.UpdatedAt = time.Now()
	return nil
}

// UpdateLastActivity refreshes a session's activity timestamps.
func (s *SessionStore) UpdateLastActivity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	sess.Touch(time.Now())
	return nil
}

// SetExpiration sets a session's TTL deadline relative to now.
func (s *SessionStore) SetExpiration(ctx context.Context, id string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	sess.SetExpiration(d)
	return nil
}
