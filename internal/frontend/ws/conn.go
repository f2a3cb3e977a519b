// Package ws serves game sessions over websockets and exposes read-only
// HTTP status endpoints.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/siege/internal/frontend/handlers"
)

// Conn adapts a websocket connection to handlers.FrameConn. Each binary
// message is one frame.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps ws, limiting inbound messages to maxFrame bytes.
// A larger message fails the connection.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration, maxFrame int) *Conn {
	ws.SetReadLimit(int64(maxFrame))
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// ReadFrame returns the next binary message. Text messages are skipped with
// handlers.ErrFrameRejected.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: message type %d is not binary", handlers.ErrFrameRejected, mt)
	}
	return data, nil
}

// WriteFrame sends frame as one binary message.
func (c *Conn) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Close sends a normal close message and closes the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
