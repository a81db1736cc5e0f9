// Package client provides the client-side delivery layer: two transport
// adapters (push and pull) and the connection mode manager that fails over
// between them.
package client

import (
	"context"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// Mode identifies a transport strategy.
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// SubmitRequest is one user message to deliver.
type SubmitRequest struct {
	SessionID string
	Content   string
}

// SubmitResult reports the outcome of one submission.
type SubmitResult struct {
	MessageID string
	SessionID string
	Success   bool
	Error     string
	Retryable bool
}

// Transport is the uniform capability both adapters implement: submit a
// message and obtain the resulting persisted transcript entries.
//
// Receive is non-blocking for the push adapter (it drains frames already
// delivered over the connection) and a poll call for the pull adapter.
// Failures are reported as *domain.TransportError.
type Transport interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Receive(ctx context.Context, sessionID string, since time.Time) ([]domain.Message, error)
	HealthCheck(ctx context.Context) error
	Mode() Mode
	Close() error
}
