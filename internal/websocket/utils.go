package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// Conn serializes writes to a gorilla connection, which allows only one
// concurrent writer. Reads stay on the caller's goroutine.
type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

// Wrap guards conn for concurrent writers.
func Wrap(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, msg string) error {
	return c.WriteTyped(ErrorResponse{
		Event:   EventError,
		Code:    code,
		Message: msg,
	})
}

// Close sends a normal close frame and closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.Conn.Close()
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func (c *Conn) ReadJSON(v any) error {
	c.SetReadDeadline(time.Now().Add(readWait))
	return c.Conn.ReadJSON(v)
}
