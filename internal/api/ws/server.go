package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/logger"
)

// Registry is the membership side of the hub.
type Registry interface {
	Join(ctx context.Context, group alert.Group, sink hub.Sink) (hub.Handle, error)
	Leave(ctx context.Context, handle hub.Handle)
}

// Server upgrades requests and attaches the connections to the registry.
type Server struct {
	registry   Registry
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewServer returns a websocket server for registry.
func NewServer(registry Registry, sendBuffer int) *Server {
	return &Server{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards and cameras are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

// Serve upgrades the request and blocks until the subscriber disconnects.
// The group must already be validated by the caller.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, group alert.Group) {
	ctx := logger.WithKV(r.Context(), "group", group, "remote", r.RemoteAddr)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		logger.WarnKV(ctx, "Websocket upgrade failed", "error", err)

		return
	}

	// The request context ends when the handler returns; pumps only use it for logging.
	ctx = context.WithoutCancel(ctx)
	c := NewConn(conn, s.sendBuffer)

	go c.WritePump(ctx)

	handle, err := s.registry.Join(ctx, group, c)
	if err != nil {
		logger.WarnKV(ctx, "Subscriber rejected", "error", err)

		return
	}

	logger.InfoKV(ctx, "Subscriber connected", "handle", handle.String())

	c.ReadPump(ctx)
	s.registry.Leave(ctx, handle)

	logger.InfoKV(ctx, "Subscriber disconnected", "handle", handle.String())
}
