package healthcheck

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var errTestPing = errors.New("test ping error")

// fakePinger fails while broken is set.
type fakePinger struct {
	broken atomic.Bool
	calls  atomic.Int32
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls.Add(1)

	if p.broken.Load() {
		return errTestPing
	}

	return nil
}

// TestMonitor_Probe follows the dependency state.
func TestMonitor_Probe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pinger := new(fakePinger)
	m := NewMonitor(pinger, time.Minute)

	got, err := m.Check(ctx, ServiceName)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, got)

	require.Equal(t, healthpb.HealthCheckResponse_SERVING, m.Probe(ctx))

	got, err = m.Check(ctx, ServiceName)
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, got)

	pinger.broken.Store(true)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, m.Probe(ctx))

	_, err = m.Check(ctx, "unknown")
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestMonitor_Run probes on every tick and shuts down with the context.
func TestMonitor_Run(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		pinger := new(fakePinger)
		m := NewMonitor(pinger, time.Second)

		done := make(chan struct{})

		go func() {
			defer close(done)

			m.Run(ctx)
		}()

		time.Sleep(3*time.Second + time.Millisecond)
		synctest.Wait()
		require.Equal(t, int32(4), pinger.calls.Load())

		cancel()
		<-done

		got, err := m.Check(context.Background(), ServiceName)
		require.NoError(t, err)
		require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, got)
	})
}

// TestMonitor_OverGRPC answers a real health client.
func TestMonitor_OverGRPC(t *testing.T) {
	t.Parallel()

	m := NewMonitor(new(fakePinger), time.Minute)
	m.Probe(context.Background())

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	m.Register(server)

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
