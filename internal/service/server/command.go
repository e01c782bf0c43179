package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/fire-watch/internal/api/grpc/healthcheck"
	"github.com/oshokin/fire-watch/internal/api/rest"
	"github.com/oshokin/fire-watch/internal/api/ws"
	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/hub"
	"github.com/oshokin/fire-watch/internal/ingest"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/notify"
	"github.com/oshokin/fire-watch/internal/repository/store"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
	"github.com/oshokin/fire-watch/internal/vision"
)

// MemoryDatabase selects the in-memory store instead of SQLite.
const MemoryDatabase = ":memory:"

const (
	readHeaderTimeout = 10 * time.Second
	requestTimeout    = 30 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Options controls the fire-server process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress overrides http_addr from the settings.
	ListenAddress string
	// DatabasePath overrides database_path from the settings.
	DatabasePath string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
}

// Run starts every component and blocks until ctx is canceled or one of the
// servers fails. Shutdown drains HTTP first, then stops the consumers.
//
//nolint:cyclop,funlen // Linear start-up sequence.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fire-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.HTTPAddress = opts.ListenAddress
	}

	if opts.DatabasePath != "" {
		settings.DatabasePath = opts.DatabasePath
	}

	if err = logger.Configure(settings.Log.Level, settings.Log.Format); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	if !opts.AllowMultiple {
		if err = ensureSingleInstance(); err != nil {
			return err
		}
	}

	repo, err := openRepository(ctx, settings.DatabasePath)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", closeErr)
		}
	}()

	registry := hub.NewRegistry(hub.WithDeliveryTimeout(settings.Hub.DeliveryTimeout))
	defer registry.Close()

	orch, err := newOrchestrator(ctx, settings, repo, registry)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Join(settings.StaticDir, "results"), 0o750); err != nil {
		return fmt.Errorf("create static dir: %w", err)
	}

	// Buffered for every component that may report a failure.
	failures := make(chan error, 3)

	httpServer := &http.Server{
		Addr: settings.HTTPAddress,
		Handler: rest.NewRouter(ctx, rest.Options{
			Service:        orch,
			Subscriptions:  ws.NewServer(registry, settings.Hub.SendBuffer),
			StaticDir:      settings.StaticDir,
			RequestTimeout: requestTimeout,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	lc := net.ListenConfig{}

	httpListener, err := lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	go func() {
		if serveErr := httpServer.Serve(httpListener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			failures <- fmt.Errorf("serve HTTP: %w", serveErr)
		}
	}()

	logger.InfoKV(ctx, "HTTP API listening",
		"listen_address", settings.HTTPAddress,
		"database", settings.DatabasePath,
		"sensor_policy", orch.Policy())

	// Background components stop when componentsCtx is canceled.
	componentsCtx, stopComponents := context.WithCancel(ctx)
	defer stopComponents()

	var grpcServer *grpc.Server

	if settings.HealthAddress != "" {
		grpcServer, err = startHealth(componentsCtx, lc, settings.HealthAddress, orch, failures)
		if err != nil {
			return err
		}
	}

	if len(settings.Ingest.Kafka.Brokers) > 0 {
		consumer, consumerErr := ingest.NewConsumer(ctx, ingest.Config{
			Brokers: settings.Ingest.Kafka.Brokers,
			Topic:   settings.Ingest.Kafka.Topic,
			Group:   settings.Ingest.Kafka.Group,
		}, orch)
		if consumerErr != nil {
			return fmt.Errorf("start kafka consumer: %w", consumerErr)
		}

		defer consumer.Close()

		go func() {
			if runErr := consumer.Run(componentsCtx); runErr != nil {
				failures <- fmt.Errorf("consume readings: %w", runErr)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down")
	case err = <-failures:
		logger.ErrorKV(ctx, "Component failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	// Websocket handlers return once the registry closes their sinks.
	registry.Close()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.ErrorKV(ctx, "HTTP shutdown failed", "error", shutdownErr)
	}

	stopComponents()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	logger.Info(ctx, "Server stopped")

	return err
}

func openRepository(ctx context.Context, path string) (store.Repository, error) {
	if path == MemoryDatabase {
		logger.Warn(ctx, "Using in-memory store, history is lost on restart")

		return store.NewMemoryRepository(), nil
	}

	repo, err := store.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return repo, nil
}

func newOrchestrator(
	ctx context.Context,
	settings *config.Config,
	repo store.Repository,
	registry *hub.Registry,
) (*orchestrator.Orchestrator, error) {
	policy, err := orchestrator.ParseSensorPolicy(settings.Orchestrator.SensorPolicy)
	if err != nil {
		return nil, err
	}

	options := []orchestrator.Option{
		orchestrator.WithSensorPolicy(policy),
		orchestrator.WithNotifyTimeout(settings.Orchestrator.NotifyTimeout),
	}

	if settings.SMTP.Host != "" {
		notifier, notifierErr := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     settings.SMTP.Host,
			Port:     settings.SMTP.Port,
			Username: settings.SMTP.Username,
			Password: settings.SMTP.Password,
			From:     settings.SMTP.From,
			To:       settings.SMTP.To,
			Timeout:  settings.Orchestrator.NotifyTimeout,
		})
		if notifierErr != nil {
			return nil, fmt.Errorf("configure smtp: %w", notifierErr)
		}

		options = append(options, orchestrator.WithNotifier(notifier))
	} else {
		logger.Warn(ctx, "SMTP is not configured, alerts are only logged")
	}

	if settings.Vision.Endpoint != "" {
		detectorOptions := []vision.Option{
			vision.WithTimeout(settings.Vision.Timeout),
			vision.WithConfidenceThreshold(settings.Vision.ConfidenceThreshold),
		}

		if settings.PublicBaseURL != "" {
			base, parseErr := url.Parse(settings.PublicBaseURL)
			if parseErr != nil {
				return nil, fmt.Errorf("parse public base url: %w", parseErr)
			}

			detectorOptions = append(detectorOptions, vision.WithPublicBaseURL(base))
		}

		detector, detectorErr := vision.NewHTTPDetector(settings.Vision.Endpoint, detectorOptions...)
		if detectorErr != nil {
			return nil, fmt.Errorf("configure vision: %w", detectorErr)
		}

		options = append(options, orchestrator.WithDetector(detector))
	} else {
		logger.Warn(ctx, "Vision endpoint is not configured, /predict is unavailable")
	}

	orch, err := orchestrator.New(repo, registry, fire.NewLatch(), options...)
	if err != nil {
		return nil, fmt.Errorf("initialise orchestrator: %w", err)
	}

	return orch, nil
}

func startHealth(
	ctx context.Context,
	lc net.ListenConfig,
	address string,
	pinger healthcheck.Pinger,
	failures chan<- error,
) (*grpc.Server, error) {
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	monitor := healthcheck.NewMonitor(pinger, healthcheck.DefaultInterval)
	server := grpc.NewServer()
	monitor.Register(server)

	go monitor.Run(ctx)

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			failures <- fmt.Errorf("serve gRPC health: %w", serveErr)
		}
	}()

	logger.InfoKV(ctx, "gRPC health listening", "listen_address", address, "service", healthcheck.ServiceName)

	return server, nil
}
