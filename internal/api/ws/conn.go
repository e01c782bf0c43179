package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/fire-watch/internal/logger"
)

const (
	// writeWait is the time allowed to write one frame.
	writeWait = 10 * time.Second
	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize limits inbound frames; subscribers are not expected to talk.
	maxMessageSize = 512
)

// DefaultSendBuffer is the outbound queue length per connection.
const DefaultSendBuffer = 16

// ErrConnClosed is returned by Deliver once the connection is gone.
var ErrConnClosed = errors.New("websocket connection closed")

// Conn adapts a websocket connection to hub.Sink.
type Conn struct {
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an upgraded connection. Start WritePump before the first Deliver.
func NewConn(conn *websocket.Conn, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}

	return &Conn{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Deliver queues one message. A full queue blocks until ctx is done, so a
// stalled peer fails within the caller's budget.
func (c *Conn) Deliver(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pumps. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

// Done is closed once the connection is shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// ReadPump reads until the peer goes away. Inbound payloads are ignored.
func (c *Conn) ReadPump(ctx context.Context) {
	defer func() {
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.DebugKV(ctx, "Websocket read failed", "remote", c.conn.RemoteAddr().String(), "error", err)
			}

			return
		}
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
// It owns the underlying connection and closes it on exit.
func (c *Conn) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				logger.DebugKV(ctx, "Websocket write failed", "remote", c.conn.RemoteAddr().String(), "error", err)

				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))

			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteMessage(messageType, data)
}
