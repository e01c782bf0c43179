package checker

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/api/rest"
	"github.com/oshokin/fire-watch/internal/api/ws"
	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/repository/store"
	"github.com/oshokin/fire-watch/internal/service/client"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestRunRejectsUnknownGroup(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{Group: "kitchen"})
	require.ErrorIs(t, err, alert.ErrInvalidGroup)
}

func TestRunPrintsAlerts(t *testing.T) {
	t.Parallel()

	registry := hub.NewRegistry()
	t.Cleanup(registry.Close)

	orch, err := orchestrator.New(store.NewMemoryRepository(), registry, fire.NewLatch())
	require.NoError(t, err)

	server := httptest.NewServer(rest.NewRouter(context.Background(), rest.Options{
		Service:       orch,
		Subscriptions: ws.NewServer(registry, 8),
	}))
	t.Cleanup(server.Close)

	settings := config.Default()
	settings.Client.ServerURL = server.URL

	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, settings))

	out := new(syncBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, &Options{
			Options:       client.Options{ConfigPath: configPath, Out: out},
			Group:         alert.GroupCamera,
			RetryInterval: 50 * time.Millisecond,
		})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), string(alert.KindConnectionEstablished)) &&
			registry.Count(alert.GroupCamera) == 1
	}, 5*time.Second, 20*time.Millisecond)

	_, err = orch.IngestReading(context.Background(), fire.SensorReading{Temperature: 80, Humidity: 10, SmokeLevel: 10})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), string(alert.KindSearchImageAlert))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
