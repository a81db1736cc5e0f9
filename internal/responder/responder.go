// Package responder is the boundary to the hosted generative-AI service.
package responder

import (
	"context"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// Responder produces an assistant reply for an inbound user message.
// The orchestrator treats it as opaque; prompt construction, knowledge
// lookups and model selection live behind this interface.
type Responder interface {
	// GenerateReply returns the assistant's reply content. Failures are
	// reported as *domain.AIServiceError so callers can distinguish
	// retryable from fatal.
	GenerateReply(ctx context.Context, session *domain.Session, history []domain.Message, content string) (string, error)
}
