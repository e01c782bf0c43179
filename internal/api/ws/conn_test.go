package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
)

// TestConn_Deliver covers the queue without a live socket.
func TestConn_Deliver(t *testing.T) {
	t.Parallel()

	c := NewConn(nil, 1)

	require.NoError(t, c.Deliver(context.Background(), []byte("a")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The queue is full and nothing drains it.
	require.ErrorIs(t, c.Deliver(ctx, []byte("b")), context.DeadlineExceeded)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Deliver(context.Background(), []byte("c")), ErrConnClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel must be closed")
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) alert.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	msg, err := alert.Decode(raw)
	require.NoError(t, err)

	return msg
}

// TestServer_Lifecycle greets, delivers and removes a subscriber over a real socket.
func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	registry := hub.NewRegistry()
	t.Cleanup(registry.Close)

	srv := NewServer(registry, 4)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Serve(w, r, alert.GroupCamera)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	greeting, ok := readMessage(t, conn).(alert.ConnectionEstablished)
	require.True(t, ok)
	require.Equal(t, alert.GroupCamera, greeting.ClientType)

	require.Eventually(t, func() bool {
		return registry.Count(alert.GroupCamera) == 1
	}, 5*time.Second, 10*time.Millisecond)

	report := registry.Publish(context.Background(), alert.GroupCamera, alert.SearchImageAlert{
		Data:      fire.SensorReading{Temperature: 60, SmokeLevel: 400},
		Message:   alert.SearchImageText,
		Timestamp: time.Now(),
	})
	require.Equal(t, 1, report.Delivered)

	search, ok := readMessage(t, conn).(alert.SearchImageAlert)
	require.True(t, ok)
	require.InDelta(t, 400, search.Data.SmokeLevel, 1e-9)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return registry.Count(alert.GroupCamera) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
