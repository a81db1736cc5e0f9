package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// MessageStore keeps messages in a map guarded by a single RWMutex.
// An insertion counter breaks CreatedAt ties so transcripts stay strictly
// ordered no matter how fast messages arrive.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string]*domain.Message
	nextSeq  int64
}

var _ store.MessageStore = (*MessageStore)(nil)

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string]*domain.Message),
	}
}

// Create stores a new message and assigns its insertion sequence.
func (s *MessageStore) Create(ctx context.Context, message *domain.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[message.ID]; exists {
		return fmt.Errorf("message %s: %w", message.ID, domain.ErrAlreadyExists)
	}
	s.nextSeq++
	cp := message.Clone()
	cp.Seq = s.nextSeq
	message.Seq = s.nextSeq
	s.messages[message.ID] = cp
	return nil
}

// GetByID returns a copy of the message or domain.ErrMessageNotFound.
func (s *MessageStore) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
	}
	return msg.Clone(), nil
}

// Delete removes a message.
func (s *MessageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[id]; !exists {
		return fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
	}
	delete(s.messages, id)
	return nil
}

// GetBySessionID returns a page of the session transcript in ascending order.
// Repeated calls with increasing offset visit every message exactly once.
func (s *MessageStore) GetBySessionID(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error) {
	msgs := s.sessionMessages(sessionID)

	if offset >= len(msgs) {
		return []domain.Message{}, nil
	}
	msgs = msgs[offset:]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// GetByType returns the session's messages of one type, in transcript order.
func (s *MessageStore) GetByType(ctx context.Context, sessionID string, msgType domain.MessageType) ([]domain.Message, error) {
	var result []domain.Message
	for _, msg := range s.sessionMessages(sessionID) {
		if msg.Type == msgType {
			result = append(result, msg)
		}
	}
	return result, nil
}

// GetByStatus returns the session's messages with one status, in transcript order.
func (s *MessageStore) GetByStatus(ctx context.Context, sessionID string, status domain.MessageStatus) ([]domain.Message, error) {
	var result []domain.Message
	for _, msg := range s.sessionMessages(sessionID) {
		if msg.Status == status {
			result = append(result, msg)
		}
	}
	return result, nil
}

// List applies the filter, sorts in transcript order and paginates.
func (s *MessageStore) List(ctx context.Context, filter store.MessageFilter) ([]domain.Message, error) {
	s.mu.RLock()
	matched := s.match(filter)
	s.mu.RUnlock()

	domain.SortMessages(matched)

	if filter.Offset >= len(matched) {
		return []domain.Message{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of messages matching the filter, ignoring pagination.
func (s *MessageStore) Count(ctx context.Context, filter store.MessageFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(filter)), nil
}

func (s *MessageStore) match(filter store.MessageFilter) []domain.Message {
	var result []domain.Message
	for _, msg := range s.messages {
		if filter.SessionID != "" && msg.SessionID != filter.SessionID {
			continue
		}
		if filter.Type != "" && msg.Type != filter.Type {
			continue
		}
		if filter.Status != "" && msg.Status != filter.Status {
			continue
		}
		if filter.CreatedAfter != nil && msg.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && msg.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		result = append(result, *msg.Clone())
	}
	return result
}

// Search finds messages containing query (case-insensitive), most-recent-first.
func (s *MessageStore) Search(ctx context.Context, sessionID, query string, limit int) ([]domain.Message, error) {
	needle := strings.ToLower(query)

	var result []domain.Message
	for _, msg := range s.sessionMessages(sessionID) {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			result = append(result, msg)
		}
	}
	reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetLatestBySessionID returns the newest messages, most-recent-first.
func (s *MessageStore) GetLatestBySessionID(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	msgs := s.sessionMessages(sessionID)
	reverse(msgs)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// UpdateStatus flips a message's delivery status without touching content or
// timestamps. Illegal transitions are rejected.
func (s *MessageStore) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return fmt.Errorf("message %s: %w", id, domain.ErrMessageNotFound)
	}
	if !msg.CanTransitionTo(status) {
		return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot transition from %s to %s", msg.Status, status)}
	}
	msg.Status = status
	return nil
}

// DeleteBySessionID removes a session's entire transcript.
func (s *MessageStore) DeleteBySessionID(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, msg := range s.messages {
		if msg.SessionID == sessionID {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

// sessionMessages returns copies of a session's messages in transcript order.
func (s *MessageStore) sessionMessages(sessionID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []domain.Message
	for _, msg := range s.messages {
		if msg.SessionID == sessionID {
			msgs = append(msgs, *msg.Clone())
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
