// Package transport holds the socket-facing send primitive shared by the
// pipeline, the reminder scheduler, and the connection handler.
package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SendTimeout bounds every outbound write. A write that exceeds it is treated
// as a stalled socket rather than awaited indefinitely.
const SendTimeout = 2 * time.Second

// Conn is the subset of *websocket.Conn this package depends on, so tests can
// substitute a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Sender serializes all writes to one connection (gorilla/websocket allows at
// most one concurrent writer) and exposes the safe-send primitive.
type Sender struct {
	mu        sync.Mutex
	conn      Conn
	sessionID string
}

// NewSender wraps a connection for serialized, timeout-bounded writes.
func NewSender(conn Conn, sessionID string) *Sender {
	return &Sender{conn: conn, sessionID: sessionID}
}

// SendSafe attempts to write payload as a text or binary frame with a bounded
// deadline. It returns true on a confirmed write and false on timeout or any
// socket error — it never panics and never returns an error to the caller.
// That boolean is the sole signal callers use to decide whether to keep
// streaming.
func (s *Sender) SendSafe(messageType int, payload []byte, label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(SendTimeout)); err != nil {
		slog.Warn("ws send: set deadline failed", "session_id", s.sessionID, "label", label, "error", err)
		return false
	}
	if err := s.conn.WriteMessage(messageType, payload); err != nil {
		slog.Warn("ws send failed", "session_id", s.sessionID, "label", label, "error", err)
		return false
	}
	return true
}

// SendText is SendSafe specialized for JSON/text frames.
func (s *Sender) SendText(payload []byte, label string) bool {
	return s.SendSafe(websocket.TextMessage, payload, label)
}

// SendBinary is SendSafe specialized for opus frames.
func (s *Sender) SendBinary(payload []byte, label string) bool {
	return s.SendSafe(websocket.BinaryMessage, payload, label)
}

// Ping issues a protocol-level ping, used by the pipeline's keepalive task.
func (s *Sender) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(SendTimeout))
}
