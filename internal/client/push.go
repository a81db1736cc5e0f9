package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/protocol"
)

// PushTransport holds a long-lived WebSocket connection. Frames pushed by
// the server are buffered and drained by Receive; Submit sends one frame
// and waits for the server to acknowledge the persisted user message.
type PushTransport struct {
	addr      string
	userID    string
	sessionID string
	timeout   time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	inbox   []domain.Message
	pending map[string]chan *SubmitResult
	readErr error
}

var _ Transport = (*PushTransport)(nil)

// NewPushTransport creates a push transport. The connection is established
// lazily on first use.
func NewPushTransport(addr, userID string, timeout time.Duration) *PushTransport {
	return &PushTransport{
		addr:    addr,
		userID:  userID,
		timeout: timeout,
		pending: make(map[string]chan *SubmitResult),
	}
}

// Mode returns ModePush.
func (t *PushTransport) Mode() Mode { return ModePush }

// ensureConnected dials and performs the hello handshake if needed.
// Callers must hold t.mu.
func (t *PushTransport) ensureConnected(ctx context.Context) error {
	if t.conn != nil && t.readErr == nil {
		return nil
	}
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.readErr = nil

	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	header := http.Header{}
	header.Set("X-User-ID", t.userID)
	conn, _, err := dialer.DialContext(ctx, t.addr, header)
	if err != nil {
		return &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("dial: %w", err)}
	}

	hello := protocol.HelloFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: t.sessionID,
		},
		UserID: t.userID,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("write hello: %w", err)}
	}

	conn.SetReadDeadline(time.Now().Add(t.timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("read hello_ack: %w", err)}
	}
	var ack protocol.BaseFrame
	if err := json.Unmarshal(data, &ack); err != nil || ack.Type != protocol.TypeHelloAck {
		conn.Close()
		return &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("unexpected handshake reply")}
	}
	conn.SetReadDeadline(time.Time{})

	t.conn = conn
	go t.readLoop(conn)
	return nil
}

// readLoop buffers pushed frames until the connection dies.
func (t *PushTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.readErr = err
			}
			// Fail any submissions still waiting on this connection.
			for id, ch := range t.pending {
				close(ch)
				delete(t.pending, id)
			}
			t.mu.Unlock()
			return
		}
		t.handleFrame(data)
	}
}

func (t *PushTransport) handleFrame(data []byte) {
	var base protocol.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		return
	}

	switch base.Event {
	case protocol.EventMessage:
		var frame protocol.MessageFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return
		}
		msg := frame.ToMessage()

		t.mu.Lock()
		t.inbox = append(t.inbox, msg)
		if msg.SessionID != "" {
			t.sessionID = msg.SessionID
		}
		if frame.RequestID != "" && msg.Type == domain.MessageTypeUser {
			if ch, ok := t.pending[frame.RequestID]; ok {
				ch <- &SubmitResult{MessageID: msg.ID, SessionID: msg.SessionID, Success: true}
				delete(t.pending, frame.RequestID)
			}
		}
		t.mu.Unlock()

	case protocol.EventError:
		var frame protocol.ErrorFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return
		}
		t.mu.Lock()
		if frame.RequestID != "" {
			if ch, ok := t.pending[frame.RequestID]; ok {
				ch <- &SubmitResult{
					SessionID: frame.SessionID,
					Success:   false,
					Error:     frame.Message,
					Retryable: frame.Retryable,
				}
				delete(t.pending, frame.RequestID)
			}
		}
		t.mu.Unlock()
	}
	// Status frames carry no transcript state; the UI reads them via the
	// connection indicator, not through Receive.
}

// Submit frames the message over the connection and waits for the server's
// acknowledgement of the persisted user message.
func (t *PushTransport) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	t.mu.Lock()
	if err := t.ensureConnected(ctx); err != nil {
		t.mu.Unlock()
		return nil, err
	}

	requestID := fmt.Sprintf("req_%d", time.Now().UnixNano())
	ch := make(chan *SubmitResult, 1)
	t.pending[requestID] = ch

	frame := protocol.SendFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeSend,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: req.SessionID,
		},
		Content: req.Content,
	}
	err := t.conn.WriteJSON(frame)
	if err != nil {
		delete(t.pending, requestID)
		t.mu.Unlock()
		return nil, &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("write send: %w", err)}
	}
	t.mu.Unlock()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case result, ok := <-ch:
		if !ok {
			return nil, &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("connection lost awaiting ack")}
		}
		if result.SessionID != "" {
			t.mu.Lock()
			t.sessionID = result.SessionID
			t.mu.Unlock()
		}
		return result, nil
	case <-timer.C:
		t.dropPending(requestID)
		return nil, &domain.TransportError{Mode: string(ModePush), Err: fmt.Errorf("timed out awaiting ack")}
	case <-ctx.Done():
		t.dropPending(requestID)
		return nil, &domain.TransportError{Mode: string(ModePush), Err: ctx.Err()}
	}
}

func (t *PushTransport) dropPending(requestID string) {
	t.mu.Lock()
	delete(t.pending, requestID)
	t.mu.Unlock()
}

// Receive drains buffered frames for the session created after since.
func (t *PushTransport) Receive(ctx context.Context, sessionID string, since time.Time) ([]domain.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readErr != nil {
		err := t.readErr
		return nil, &domain.TransportError{Mode: string(ModePush), Err: err}
	}

	var out []domain.Message
	var keep []domain.Message
	for _, msg := range t.inbox {
		if sessionID != "" && msg.SessionID != sessionID {
			keep = append(keep, msg)
			continue
		}
		if !since.IsZero() && !msg.CreatedAt.After(since) {
			continue
		}
		out = append(out, msg)
	}
	t.inbox = keep
	return out, nil
}

// HealthCheck verifies the connection, dialing if necessary.
func (t *PushTransport) HealthCheck(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureConnected(ctx); err != nil {
		return err
	}
	deadline := time.Now().Add(t.timeout)
	if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return &domain.TransportError{Mode: string(ModePush), Err: err}
	}
	return nil
}

// Close tears down the connection.
func (t *PushTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}
