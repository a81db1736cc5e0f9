package domain

import (
	"sort"
	"time"
	"unicode/utf8"
)

// MessageType identifies who produced a message.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeSystem    MessageType = "system"
	MessageTypeError     MessageType = "error"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// MaxContentLength bounds message content, counted in characters.
const MaxContentLength = 10000

// Message represents one turn in a session's transcript.
//
// Seq is assigned by the store on insert and breaks CreatedAt ties so the
// transcript stays strictly ordered on every read path.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Type      MessageType       `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    MessageStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Seq       int64             `json:"seq,omitempty"`
}

// Validate checks the message invariants.
func (m *Message) Validate() error {
	if m.ID == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if m.SessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "is required"}
	}
	if m.Content == "" {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	if utf8.RuneCountInString(m.Content) > MaxContentLength {
		return &ValidationError{Field: "content", Reason: "exceeds 10000 characters"}
	}
	switch m.Type {
	case MessageTypeUser, MessageTypeAssistant, MessageTypeSystem, MessageTypeError:
	default:
		return &ValidationError{Field: "type", Reason: "must be one of user, assistant, system, error"}
	}
	switch m.Status {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead, MessageStatusFailed:
	default:
		return &ValidationError{Field: "status", Reason: "must be one of sent, delivered, read, failed"}
	}
	return nil
}

// CanTransitionTo reports whether a status change is legal.
// Delivery moves forward only (sent -> delivered -> read); failed is terminal.
func (m *Message) CanTransitionTo(next MessageStatus) bool {
	if m.Status == next {
		return true
	}
	switch m.Status {
	case MessageStatusSent:
		return next == MessageStatusDelivered || next == MessageStatusRead || next == MessageStatusFailed
	case MessageStatusDelivered:
		return next == MessageStatusRead || next == MessageStatusFailed
	case MessageStatusRead, MessageStatusFailed:
		return false
	}
	return false
}

// Clone returns an independent copy of the message.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Metadata != nil {
		cp.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// SortMessages orders messages ascending by CreatedAt, ties broken by Seq.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].Seq < messages[j].Seq
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
