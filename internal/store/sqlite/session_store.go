package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// SessionStore implements store.SessionStore on SQLite.
type SessionStore struct {
	db *sql.DB
}

var _ store.SessionStore = (*SessionStore)(nil)

const sessionColumns = `session_id, user_id, client_name, context, status, metadata, created_at, updated_at, last_activity_at, expires_at`

// Create inserts a new session. Duplicate IDs map to domain.ErrAlreadyExists.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.ClientName, session.Context, session.Status,
		marshalMetadata(session.Metadata), session.CreatedAt, session.UpdatedAt,
		session.LastActivityAt, nullTime(session.ExpiresAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("session %s: %w", session.ID, domain.ErrAlreadyExists)
	}
	return err
}

// GetByID retrieves a session or domain.ErrSessionNotFound.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Update replaces a stored session.
func (s *SessionStore) Update(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET user_id = ?, client_name = ?, context = ?, status = ?, metadata = ?, updated_at = ?, last_activity_at = ?, expires_at = ? WHERE session_id = ?`,
		session.UserID, session.ClientName, session.Context, session.Status,
		marshalMetadata(session.Metadata), session.UpdatedAt, session.LastActivityAt,
		nullTime(session.ExpiresAt), session.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionNotFound))
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound))
}

// GetByUserID returns all sessions owned by userID, newest first.
func (s *SessionStore) GetByUserID(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// GetActiveByUserID returns the user's active, unexpired sessions, newest first.
func (s *SessionStore) GetActiveByUserID(ctx context.Context, userID string) ([]domain.Session, error) {
	now := time.Now()
	return s.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?) ORDER BY created_at DESC`,
		userID, domain.SessionStatusActive, now)
}

// List applies the filter and paginates, ascending by creation time.
func (s *SessionStore) List(ctx context.Context, filter store.SessionFilter) ([]domain.Session, error) {
	where, args := sessionWhere(filter)
	q := `SELECT ` + sessionColumns + ` FROM sessions` + where + ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			q += " LIMIT -1"
		}
		q += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return s.query(ctx, q, args...)
}

// Count returns the number of sessions matching the filter.
func (s *SessionStore) Count(ctx context.Context, filter store.SessionFilter) (int, error) {
	where, args := sessionWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&n)
	return n, err
}

func sessionWhere(filter store.SessionFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ClientName != "" {
		conds = append(conds, "LOWER(client_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.ClientName)+"%")
	}
	if filter.CreatedAfter != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *filter.CreatedBefore)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetExpiredSessions returns TTL-expired sessions, soonest-expired first.
func (s *SessionStore) GetExpiredSessions(ctx context.Context) ([]domain.Session, error) {
	return s.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ? ORDER BY expires_at ASC`,
		time.Now())
}

// GetInactiveSessions returns sessions idle longer than threshold, longest-idle first.
func (s *SessionStore) GetInactiveSessions(ctx context.Context, threshold time.Duration) ([]domain.Session, error) {
	return s.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE last_activity_at < ? ORDER BY last_activity_at ASC`,
		time.Now().Add(-threshold))
}

// DeleteExpiredSessions removes TTL-expired sessions and their transcripts.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, `expires_at IS NOT NULL AND expires_at < ?`, time.Now())
}

// DeleteInactiveSessions removes sessions idle longer than threshold.
func (s *SessionStore) DeleteInactiveSessions(ctx context.Context, threshold time.Duration) (int, error) {
	return s.deleteWhere(ctx, `last_activity_at < ?`, time.Now().Add(-threshold))
}

func (s *SessionStore) deleteWhere(ctx context.Context, cond string, args ...interface{}) (int, error) {
	// Messages first, the foreign key has no ON DELETE CASCADE.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (SELECT session_id FROM sessions WHERE `+cond+`)`, args...); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE `+cond, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpdateStatus transitions a session's status.
func (s *SessionStore) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound))
}

// UpdateLastActivity refreshes a session's activity timestamps.
func (s *SessionStore) UpdateLastActivity(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ?, updated_at = ? WHERE session_id = ?`,
		now, now, id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound))
}

// SetExpiration sets a session's TTL deadline relative to now.
func (s *SessionStore) SetExpiration(ctx context.Context, id string, d time.Duration) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, updated_at = ? WHERE session_id = ?`,
		now.Add(d), now, id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound))
}

func (s *SessionStore) query(ctx context.Context, q string, args ...interface{}) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var metadata sql.NullString
	var expiresAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.ClientName, &sess.Context, &sess.Status,
		&metadata, &sess.CreatedAt, &sess.UpdatedAt, &sess.LastActivityAt, &expiresAt); err != nil {
		return nil, err
	}
	sess.Metadata = unmarshalMetadata(metadata)
	if expiresAt.Valid {
		t := expiresAt.Time
		sess.ExpiresAt = &t
	}
	return &sess, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
