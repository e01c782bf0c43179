package integration

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/fire-watch/internal/api/grpc/healthcheck"
	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/checker"
	"github.com/oshokin/fire-watch/internal/service/client"
	"github.com/oshokin/fire-watch/internal/service/common"
)

// TestServer_HistorySurvivesRestart posts readings and thresholds, restarts
// the server on the same SQLite file and checks what was kept.
func TestServer_HistorySurvivesRestart(t *testing.T) {
	inst := newInstance(t, filepath.Join(t.TempDir(), "fire.db"))
	ctx := context.Background()

	stop := inst.start(t)

	c, err := common.NewClient(inst.serverURL(), common.WithActor("tester@ci"))
	require.NoError(t, err)

	gasMax := 200.0

	_, err = c.UpdateThresholds(ctx, fire.ThresholdsPatch{GasMax: &gasMax})
	require.NoError(t, err)

	result, err := c.PostReading(ctx, fire.SensorReading{Temperature: 22, Humidity: 40, SmokeLevel: 250})
	require.NoError(t, err)
	require.True(t, result.FireAlert)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, fire.StatusConfirmed, status)

	stop()

	stop = inst.start(t)
	defer stop()

	thresholds, err := c.Thresholds(ctx)
	require.NoError(t, err)
	require.InDelta(t, 200.0, thresholds.GasMax, 1e-9)
	require.Equal(t, "tester@ci", thresholds.UpdatedBy)

	// The latch lives in memory, the risky reading is still on disk.
	snapshot, err := c.FireState(ctx)
	require.NoError(t, err)
	require.False(t, snapshot.Confirmed)

	status, err = c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, fire.StatusRisk, status)
}

// TestServer_HealthServing checks the gRPC health endpoint of a running server.
func TestServer_HealthServing(t *testing.T) {
	inst := newInstance(t, ":memory:")

	stop := inst.start(t)
	defer stop()

	conn, err := grpc.NewClient(inst.healthAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	health := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		resp, checkErr := health.Check(ctx, &healthpb.HealthCheckRequest{Service: healthcheck.ServiceName})

		return checkErr == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 50*time.Millisecond)
}

// TestServer_CameraFlow follows a risky reading to the camera group and
// checks that later readings are paused.
func TestServer_CameraFlow(t *testing.T) {
	inst := newInstance(t, ":memory:")

	stop := inst.start(t)
	defer stop()

	c, err := common.NewClient(inst.serverURL(), common.WithActor("tester@ci"))
	require.NoError(t, err)

	camera, resp, err := websocket.DefaultDialer.Dial(c.SubscriptionURL(alert.GroupCamera), nil)
	require.NoError(t, err)

	_ = resp.Body.Close()

	defer camera.Close()

	require.NoError(t, camera.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, greeting, err := camera.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(greeting), string(alert.KindConnectionEstablished))

	ctx := context.Background()

	// The greeting is queued just before the camera is registered.
	time.Sleep(100 * time.Millisecond)

	result, err := c.PostReading(ctx, fire.SensorReading{Temperature: 90, Humidity: 10, SmokeLevel: 10})
	require.NoError(t, err)
	require.True(t, result.CameraAlert)

	_, payload, err := camera.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), string(alert.KindSearchImageAlert))

	result, err = c.PostReading(ctx, fire.SensorReading{Temperature: 95, Humidity: 10, SmokeLevel: 10})
	require.NoError(t, err)
	require.True(t, result.Paused)
	require.True(t, result.FireAlert)
	require.False(t, result.CameraAlert)
}

// lockedBuilder collects watch output.
type lockedBuilder struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuilder) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sb.Write(p)
}

func (b *lockedBuilder) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sb.String()
}

// TestWatch_ReceivesDashboardReadings runs the watch command against a live server.
func TestWatch_ReceivesDashboardReadings(t *testing.T) {
	inst := newInstance(t, ":memory:")

	stop := inst.start(t)
	defer stop()

	out := new(lockedBuilder)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- checker.Run(ctx, &checker.Options{
			Options: client.Options{ConfigPath: inst.configPath, Out: out},
			Group:   alert.GroupDashboard,
		})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), string(alert.KindConnectionEstablished))
	}, 5*time.Second, 20*time.Millisecond)

	opts := &client.Options{ConfigPath: inst.configPath, Out: new(lockedBuilder)}

	require.Eventually(t, func() bool {
		_ = client.PostReading(context.Background(), opts, fire.SensorReading{Temperature: 20, Humidity: 50, SmokeLevel: 5})

		return strings.Contains(out.String(), string(alert.KindSensorReading))
	}, 5*time.Second, 100*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
