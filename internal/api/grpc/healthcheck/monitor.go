package healthcheck

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/fire-watch/internal/logger"
)

// ServiceName is the health service name reported by the monitor.
const ServiceName = "firewatch"

// DefaultInterval is the probe period used when none is configured.
const DefaultInterval = 10 * time.Second

// probeTimeout bounds one probe.
const probeTimeout = 3 * time.Second

// Pinger is the dependency being probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor keeps the health status of ServiceName current.
type Monitor struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
}

// NewMonitor returns a monitor probing pinger every interval.
func NewMonitor(pinger Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}

	m := &Monitor{
		server:   health.NewServer(),
		pinger:   pinger,
		interval: interval,
	}

	// Not serving until the first probe succeeds.
	m.server.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return m
}

// Register attaches the health service to s.
func (m *Monitor) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, m.server)
}

// Probe pings the dependency once and publishes the result.
func (m *Monitor) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING

	if err := m.pinger.Ping(probeCtx); err != nil {
		logger.WarnKV(ctx, "Health probe failed", "service", ServiceName, "error", err)

		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	m.server.SetServingStatus(ServiceName, status)

	return status
}

// Run probes until ctx is done, then marks every service as not serving.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()

			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING for every service. Later probes are ignored.
func (m *Monitor) Shutdown() {
	m.server.Shutdown()
}

// Check answers a health query directly without a gRPC round trip.
func (m *Monitor) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := m.server.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}

	return resp.GetStatus(), nil
}
