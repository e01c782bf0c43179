package client

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/api/rest"
	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/repository/store"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

// newOptions starts an API server and returns options pointing at it.
func newOptions(t *testing.T) (*Options, *bytes.Buffer) {
	t.Helper()

	registry := hub.NewRegistry()
	t.Cleanup(registry.Close)

	orch, err := orchestrator.New(store.NewMemoryRepository(), registry, fire.NewLatch())
	require.NoError(t, err)

	server := httptest.NewServer(rest.NewRouter(context.Background(), rest.Options{Service: orch}))
	t.Cleanup(server.Close)

	settings := config.Default()
	settings.Client.ServerURL = server.URL

	configPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, settings))

	out := new(bytes.Buffer)

	return &Options{ConfigPath: configPath, Out: out}, out
}

func TestPostReadingAndStatus(t *testing.T) {
	t.Parallel()

	opts, out := newOptions(t)
	ctx := context.Background()

	require.NoError(t, ShowStatus(ctx, opts))
	require.Contains(t, out.String(), "status: NORMAL")
	require.Contains(t, out.String(), "not confirmed")

	out.Reset()
	require.NoError(t, PostReading(ctx, opts, fire.SensorReading{Temperature: 72, Humidity: 15, SmokeLevel: 40}))
	require.Contains(t, out.String(), "Sensors updated (fire_alert=true, camera_alert=true)")
	require.Contains(t, out.String(), "email: ")

	out.Reset()
	require.NoError(t, ShowStatus(ctx, opts))
	require.Contains(t, out.String(), "status: CONFIRMED")
	require.Contains(t, out.String(), "confirmed by sensor")

	out.Reset()
	require.NoError(t, Reset(ctx, opts))
	require.Contains(t, out.String(), "fire state reset: not confirmed")

	out.Reset()
	require.NoError(t, Reset(ctx, opts))
	require.Contains(t, out.String(), "nothing to reset")
}

func TestThresholds(t *testing.T) {
	t.Parallel()

	opts, out := newOptions(t)
	ctx := context.Background()

	require.NoError(t, ShowThresholds(ctx, opts))
	require.Contains(t, out.String(), "temperature_max: 50.0")
	require.Contains(t, out.String(), "gas_max: 300.0")

	require.ErrorIs(t, SetThresholds(ctx, opts, fire.ThresholdsPatch{}), errEmptyPatch)

	temperatureMax := 45.5

	out.Reset()
	require.NoError(t, SetThresholds(ctx, opts, fire.ThresholdsPatch{TemperatureMax: &temperatureMax}))
	require.Contains(t, out.String(), "temperature_max: 45.5")
	require.Contains(t, out.String(), "gas_max: 300.0")
	require.Contains(t, out.String(), "updated: ")
}

func TestServerURLOverride(t *testing.T) {
	t.Parallel()

	opts, _ := newOptions(t)
	opts.ServerURL = "ftp://nowhere"

	require.Error(t, ShowStatus(context.Background(), opts))
}
