package responder

import (
	"context"
	"fmt"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// MockClient is a canned responder for local development and tests.
type MockClient struct{}

// NewMockClient creates a new mock responder.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ Responder = (*MockClient)(nil)

// GenerateReply echoes the question back with a canned preamble.
func (m *MockClient) GenerateReply(ctx context.Context, session *domain.Session, history []domain.Message, content string) (string, error) {
	select {
	case <-ctx.Done():
		return "", &domain.AIServiceError{Retryable: true, Err: ctx.Err()}
	default:
	}

	if session.ClientName != "" {
		return fmt.Sprintf("[MOCK] Regarding %s: received your message %q. This is a mock reply.",
			session.ClientName, truncate(content, 100)), nil
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock reply.", truncate(content, 100)), nil
}
