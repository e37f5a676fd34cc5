package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrSinkClosed is returned by Send after Close
var ErrSinkClosed = errors.New("websocket sink closed")

const defaultWriteTimeout = 10 * time.Second

// WebSocketSink writes frames to one gorilla connection. All writes to the
// connection must go through the sink so they stay serialized.
type WebSocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closed       bool
}

func NewWebSocketSink(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketSink {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &WebSocketSink{conn: conn, writeTimeout: writeTimeout}
}

// Send writes a frame as a JSON text message
func (s *WebSocketSink) Send(f Frame) error {
	return s.WriteJSON(f)
}

// WriteJSON writes any JSON document, e.g. command replies
func (s *WebSocketSink) WriteJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := s.conn.WriteJSON(v); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// Close sends a close frame and marks the sink unusable
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
