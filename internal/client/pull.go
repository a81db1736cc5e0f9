package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// PullTransport submits over plain request/response calls and polls for new
// messages. A single-round-trip client is this transport with a zero poll
// interval.
type PullTransport struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

var _ Transport = (*PullTransport)(nil)

// NewPullTransport creates a polling transport against the chat HTTP API.
func NewPullTransport(baseURL, userID string, timeout time.Duration) *PullTransport {
	return &PullTransport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userID:  userID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Mode returns ModePull.
func (t *PullTransport) Mode() Mode { return ModePull }

type submitBody struct {
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

type submitResponse struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Submit posts the message to the submit endpoint.
func (t *PullTransport) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body, err := json.Marshal(submitBody{SessionID: req.SessionID, Content: req.Content})
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-User-ID", t.userID)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	if resp.StatusCode >= 500 {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: fmt.Errorf("server returned %d", resp.StatusCode)}
	}

	var out submitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &SubmitResult{
		MessageID: out.MessageID,
		SessionID: out.SessionID,
		Success:   out.Success,
		Error:     out.Error,
		Retryable: out.Retryable,
	}, nil
}

// Receive polls the messages endpoint for entries after since.
func (t *PullTransport) Receive(ctx context.Context, sessionID string, since time.Time) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, nil
	}

	url := t.baseURL + "/chat/messages?session_id=" + sessionID
	if !since.IsZero() {
		url += "&since=" + strconv.FormatInt(since.UnixMilli(), 10)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	httpReq.Header.Set("X-User-ID", t.userID)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: fmt.Errorf("poll returned %d", resp.StatusCode)}
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.TransportError{Mode: string(ModePull), Err: fmt.Errorf("failed to decode poll response: %w", err)}
	}
	return out.Messages, nil
}

// HealthCheck probes the health endpoint.
func (t *PullTransport) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return &domain.TransportError{Mode: string(ModePull), Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &domain.TransportError{Mode: string(ModePull), Err: fmt.Errorf("health returned %d", resp.StatusCode)}
	}
	return nil
}

// Close is a no-op; the pull transport holds no connection.
func (t *PullTransport) Close() error { return nil }
