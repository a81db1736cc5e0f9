package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Responder = (*Client)(nil)

// NewClient creates a new responder client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You are a cloud consulting assistant. Answer questions about " +
	"cloud architecture, migration and cost optimization for the client in context."

// GenerateReply sends the session context and transcript to the model and
// returns the assistant's reply.
func (c *Client) GenerateReply(ctx context.Context, session *domain.Session, history []domain.Message, content string) (string, error) {
	messages := []chatMessage{{Role: "system", Content: c.systemContent(session)}}
	for _, msg := range history {
		switch msg.Type {
		case domain.MessageTypeUser:
			messages = append(messages, chatMessage{Role: "user", Content: msg.Content})
		case domain.MessageTypeAssistant:
			messages = append(messages, chatMessage{Role: "assistant", Content: msg.Content})
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: content})

	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", &domain.AIServiceError{Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &domain.AIServiceError{Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network faults, timeouts and caller cancellation all leave the
		// request unanswered, so a resend is safe.
		return "", &domain.AIServiceError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.AIServiceError{Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ai service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
		// Server-side failures and throttling are worth a retry; the rest are not.
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", &domain.AIServiceError{Retryable: retryable, Err: err}
	}

	var out completionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &domain.AIServiceError{Retryable: false, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if out.Error != nil {
		return "", &domain.AIServiceError{Retryable: false, Err: fmt.Errorf("ai service error: %s", out.Error.Message)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &domain.AIServiceError{Retryable: true, Err: fmt.Errorf("ai service returned no choices")}
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) systemContent(session *domain.Session) string {
	prompt := systemPrompt
	if session.ClientName != "" {
		prompt += " Client: " + session.ClientName + "."
	}
	if session.Context != "" {
		prompt += " Context: " + session.Context
	}
	return prompt
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
