package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cloudbridge/chatcore/internal/config"
	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/protocol"
	"github.com/cloudbridge/chatcore/internal/service"
)

// Server handles WebSocket connections for the push transport.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	svc      *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *Hub, svc *service.Service) *Server {
	return &Server{
		cfg: cfg,
		hub: h,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checks happen in the auth middleware upstream.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection and starts the pumps.
// GET /chat/ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	conn.UserID = c.Request().Header.Get("X-User-ID")
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleFrame(conn, data)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Failed to write frame: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(conn *Connection, data []byte) {
	var base protocol.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidFrame, "invalid JSON frame", false)
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeSend:
		s.handleSend(conn, data)
	default:
		s.sendError(conn, base.RequestID, protocol.ErrorCodeInvalidFrame, "unknown frame type: "+base.Type, false)
	}
}

func (s *Server) handleHello(conn *Connection, data []byte) {
	var frame protocol.HelloFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidFrame, "invalid hello frame", false)
		return
	}

	if frame.UserID != "" {
		conn.UserID = frame.UserID
	}
	if conn.UserID == "" {
		s.sendError(conn, frame.RequestID, protocol.ErrorCodeValidation, "user_id is required", false)
		return
	}

	// The session is bound eagerly so pushed frames reach this connection
	// even before the first send.
	sessionID := frame.SessionID
	if sessionID != "" {
		s.hub.BindSession(conn, sessionID)
	}

	ack := protocol.HelloAckFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: frame.RequestID,
			SessionID: sessionID,
		},
	}
	s.hub.SendJSON(conn, ack)
}

func (s *Server) handleSend(conn *Connection, data []byte) {
	var frame protocol.SendFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidFrame, "invalid send frame", false)
		return
	}

	if conn.UserID == "" {
		s.sendError(conn, frame.RequestID, protocol.ErrorCodeSessionRequired, "must send hello first", false)
		return
	}

	sessionID := s.hub.BoundSession(conn)
	if frame.SessionID != "" {
		sessionID = frame.SessionID
	}
	userID := conn.UserID

	// Run the exchange off the read loop so one slow AI call does not stall
	// other frames on this connection.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AITimeout+10*time.Second)
		defer cancel()

		if sessionID != "" {
			s.pushStatus(sessionID, protocol.StateComposing)
		}

		result, err := s.svc.SendMessage(ctx, service.SendRequest{
			SessionID: sessionID,
			UserID:    userID,
			Content:   frame.Content,
		})
		if err != nil {
			code := protocol.ErrorCodeInternalError
			if domain.IsValidation(err) {
				code = protocol.ErrorCodeValidation
			} else {
				log.Printf("ERROR: send failed: %v", err)
			}
			s.sendError(conn, frame.RequestID, code, err.Error(), false)
			return
		}

		// A first send creates the session; bind the connection so the
		// pushed frames below (and all later ones) reach it.
		if s.hub.BoundSession(conn) != result.Session.ID {
			s.hub.BindSession(conn, result.Session.ID)
		}

		s.pushMessage(result.UserMessage, frame.RequestID)
		s.pushMessage(result.Reply, frame.RequestID)

		if result.AIErr != nil {
			s.sendError(conn, frame.RequestID, protocol.ErrorCodeAIService, result.AIErr.Error(), result.AIErr.Retryable)
		}
	}()
}

// PushMessage delivers a persisted message to every connection on its session.
func (s *Server) PushMessage(msg *domain.Message) {
	s.pushMessage(msg, "")
}

func (s *Server) pushMessage(msg *domain.Message, requestID string) {
	frame := protocol.NewMessageFrame(msg)
	frame.RequestID = requestID
	if err := s.hub.BroadcastJSON(msg.SessionID, frame); err != nil {
		log.Printf("ERROR: failed to push message %s: %v", msg.ID, err)
	}
}

func (s *Server) pushStatus(sessionID, state string) {
	frame := protocol.StatusFrame{
		BaseFrame: protocol.BaseFrame{
			Event:     protocol.EventStatus,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		State: state,
	}
	if err := s.hub.BroadcastJSON(sessionID, frame); err != nil {
		log.Printf("ERROR: failed to push status to session %s: %v", sessionID, err)
	}
}

func (s *Server) sendError(conn *Connection, requestID, code, message string, retryable bool) {
	frame := protocol.ErrorFrame{
		BaseFrame: protocol.BaseFrame{
			Event:     protocol.EventError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: s.hub.BoundSession(conn),
		},
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
	s.hub.SendJSON(conn, frame)
}
