// Package protocol defines the push-transport frame types between clients
// and the chat server.
package protocol

import (
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// Event discriminators carried by server frames.
const (
	EventMessage = "message"
	EventStatus  = "status"
	EventError   = "error"
)

// Frame types from client to server.
const (
	TypeHello = "hello"
	TypeSend  = "send"
)

// Frame types from server to client.
const (
	TypeHelloAck = "hello_ack"
)

// BaseFrame contains common fields for all frames.
type BaseFrame struct {
	Type      string `json:"type,omitempty"`
	Event     string `json:"event,omitempty"`
	Ts        int64  `json:"ts,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloFrame is sent by a client to bind its connection to a session.
type HelloFrame struct {
	BaseFrame
	UserID     string `json:"user_id"`
	ClientName string `json:"client_name,omitempty"`
}

// HelloAckFrame confirms the binding and carries the resolved session ID.
type HelloAckFrame struct {
	BaseFrame
}

// SendFrame is sent by a client to submit one user message.
type SendFrame struct {
	BaseFrame
	Content string `json:"content"`
}

// MessageFrame delivers one persisted transcript entry. The record shape
// matches the pull transport's poll response, so the "type" key carries the
// message type here and shadows the embedded frame-type field, which stays
// empty on server-pushed frames.
type MessageFrame struct {
	BaseFrame
	ID        string               `json:"id"`
	Type      domain.MessageType   `json:"type"`
	Content   string               `json:"content"`
	Status    domain.MessageStatus `json:"status"`
	Seq       int64                `json:"seq,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// StatusFrame is a server-initiated delivery state update, e.g. the
// assistant is composing.
type StatusFrame struct {
	BaseFrame
	State string `json:"state"`
}

// ErrorFrame reports a failure for a submitted request.
type ErrorFrame struct {
	BaseFrame
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error codes
const (
	ErrorCodeInvalidFrame    = "invalid_frame"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeValidation      = "validation_failed"
	ErrorCodeAIService       = "ai_service_failed"
	ErrorCodeInternalError   = "internal_error"
)

// Composing is the state pushed while the assistant works on a reply.
const StateComposing = "composing"

// NewMessageFrame wraps a persisted message for the wire.
func NewMessageFrame(msg *domain.Message) MessageFrame {
	return MessageFrame{
		BaseFrame: BaseFrame{
			Event:     EventMessage,
			Ts:        time.Now().UnixMilli(),
			SessionID: msg.SessionID,
		},
		ID:        msg.ID,
		Type:      msg.Type,
		Content:   msg.Content,
		Status:    msg.Status,
		Seq:       msg.Seq,
		CreatedAt: msg.CreatedAt,
	}
}

// ToMessage converts a wire frame back into a domain message.
func (f *MessageFrame) ToMessage() domain.Message {
	return domain.Message{
		ID:        f.ID,
		SessionID: f.SessionID,
		Type:      f.Type,
		Content:   f.Content,
		Status:    f.Status,
		Seq:       f.Seq,
		CreatedAt: f.CreatedAt,
	}
}
