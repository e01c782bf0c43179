//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/api/rest"
	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/repository/store"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := hub.NewRegistry()
	t.Cleanup(registry.Close)

	orch, err := orchestrator.New(store.NewMemoryRepository(), registry, fire.NewLatch())
	require.NoError(t, err)

	server := httptest.NewServer(rest.NewRouter(context.Background(), rest.Options{Service: orch}))
	t.Cleanup(server.Close)

	return server
}

// TestNewClient_ValidatesAddress verifies that NewClient rejects unusable URLs.
func TestNewClient_ValidatesAddress(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://example.com", "://broken"} {
		c, err := NewClient(raw)
		require.Error(t, err, raw)
		require.Nil(t, c)
	}
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_AuditedCallsNeedActor asserts that updates and resets are rejected without an actor.
func TestClient_AuditedCallsNeedActor(t *testing.T) {
	t.Parallel()

	c, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	gasMax := 100.0

	_, err = c.UpdateThresholds(context.Background(), fire.ThresholdsPatch{GasMax: &gasMax})
	require.ErrorIs(t, err, errActorRequired)

	_, err = c.ResetFireState(context.Background())
	require.ErrorIs(t, err, errActorRequired)
}

func TestClient_SubscriptionURL(t *testing.T) {
	t.Parallel()

	c, err := NewClient("https://fire.example.com/api/")
	require.NoError(t, err)
	require.Equal(t, "wss://fire.example.com/api/ws/camera", c.SubscriptionURL(alert.GroupCamera))

	c, err = NewClient("http://127.0.0.1:8000")
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:8000/ws/dashboard", c.SubscriptionURL(alert.GroupDashboard))
}

func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	ctx := context.Background()

	c, err := NewClient(server.URL, WithActor("alice@lab"), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, fire.StatusNormal, status)

	gasMax := 250.0

	thresholds, err := c.UpdateThresholds(ctx, fire.ThresholdsPatch{GasMax: &gasMax})
	require.NoError(t, err)
	require.InDelta(t, fire.DefaultTemperatureMax, thresholds.TemperatureMax, 1e-9)
	require.InDelta(t, 250.0, thresholds.GasMax, 1e-9)
	require.Equal(t, "alice@lab", thresholds.UpdatedBy)

	thresholds, err = c.Thresholds(ctx)
	require.NoError(t, err)
	require.InDelta(t, 250.0, thresholds.GasMax, 1e-9)

	result, err := c.PostReading(ctx, fire.SensorReading{Temperature: 65, Humidity: 20, SmokeLevel: 120})
	require.NoError(t, err)
	require.True(t, result.FireAlert)
	require.True(t, result.CameraAlert)
	require.False(t, result.EmailSent)
	require.NotNil(t, result.EmailError)

	status, err = c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, fire.StatusConfirmed, status)

	snapshot, err := c.FireState(ctx)
	require.NoError(t, err)
	require.True(t, snapshot.Confirmed)
	require.Equal(t, fire.SourceSensor, snapshot.Source)

	reset, err := c.ResetFireState(ctx)
	require.NoError(t, err)
	require.True(t, reset.Reset)
	require.False(t, reset.FireState.Confirmed)
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)

	c, err := NewClient(server.URL, WithActor("alice@lab"))
	require.NoError(t, err)

	negative := -1.0

	_, err = c.UpdateThresholds(context.Background(), fire.ThresholdsPatch{TemperatureMax: &negative})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.NotEmpty(t, apiErr.Detail)
}
