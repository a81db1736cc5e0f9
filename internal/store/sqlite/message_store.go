package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// MessageStore implements store.MessageStore on SQLite.
type MessageStore struct {
	db *sql.DB
}

var _ store.MessageStore = (*MessageStore)(nil)

const messageColumns = `message_id, seq, session_id, type, content, status, metadata, created_at`

// Create inserts a new message and assigns its insertion sequence.
func (s *MessageStore) Create(ctx context.Context, message *domain.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE message_seq SET value = value + 1 WHERE id = 1 RETURNING value`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate message seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID, seq, message.SessionID, message.Type, message.Content, message.Status,
		marshalMetadata(message.Metadata), message.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("message %s: %w", message.ID, domain.ErrAlreadyExists)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	message.Seq = seq
	return nil
}

// GetByID retrieves a message or domain.ErrMessageNotFound.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE message_id = ?`, id)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Delete removes a message.
func (s *MessageStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE message_id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound))
}

// GetBySessionID returns a page of the transcript in ascending order.
func (s *MessageStore) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = ? ORDER BY created_at ASC, seq ASC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	} else if offset > 0 {
		q += " LIMIT -1"
	}
	if offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", offset)
	}
	return s.query(ctx, q, sessionID)
}

// GetByType returns the session's messages of one type, in transcript order.
func (s *MessageStore) GetByType(ctx context.Context, sessionID string, msgType domain.MessageType) ([]domain.Message, error) {
	return s.query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? AND type = ? ORDER BY created_at ASC, seq ASC`,
		sessionID, msgType)
}

// GetByStatus returns the session's messages with one status, in transcript order.
func (s *MessageStore) GetByStatus(ctx context.Context, sessionID string, status domain.MessageStatus) ([]domain.Message, error) {
	return s.query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? AND status = ? ORDER BY created_at ASC, seq ASC`,
		sessionID, status)
}

// List applies the filter and paginates in transcript order.
func (s *MessageStore) List(ctx context.Context, filter store.MessageFilter) ([]domain.Message, error) {
	where, args := messageWhere(filter)
	q := `SELECT ` + messageColumns + ` FROM messages` + where + ` ORDER BY created_at ASC, seq ASC`
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		q += " LIMIT -1"
	}
	if filter.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return s.query(ctx, q, args...)
}

// Count returns the number of messages matching the filter.
func (s *MessageStore) Count(ctx context.Context, filter store.MessageFilter) (int, error) {
	where, args := messageWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&n)
	return n, err
}

func messageWhere(filter store.MessageFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
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

// Search finds messages containing query (case-insensitive), most-recent-first.
func (s *MessageStore) Search(ctx context.Context, sessionID, query string, limit int) ([]domain.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = ? AND LOWER(content) LIKE ? ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.query(ctx, q, sessionID, "%"+strings.ToLower(query)+"%")
}

// GetLatestBySessionID returns the newest messages, most-recent-first.
func (s *MessageStore) GetLatestBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = ? ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.query(ctx, q, sessionID)
}

// UpdateStatus flips a message's delivery status. Illegal transitions are rejected.
func (s *MessageStore) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(status) {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot transition from %s to %s", current.Status, status)}
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE message_id = ?`, status, id)
	return err
}

// DeleteBySessionID removes a session's entire transcript.
func (s *MessageStore) DeleteBySessionID(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *MessageStore) query(ctx context.Context, q string, args ...interface{}) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var metadata sql.NullString
	if err := row.Scan(&msg.ID, &msg.Seq, &msg.SessionID, &msg.Type, &msg.Content, &msg.Status,
		&metadata, &msg.CreatedAt); err != nil {
		return nil, err
	}
	msg.Metadata = unmarshalMetadata(metadata)
	return &msg, nil
}
