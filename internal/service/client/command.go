package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/service/common"
)

// Options configures the connection of one fire-cli call.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerURL overrides client.server_url from config when specified.
	ServerURL string
	// Timeout overrides client.timeout when positive.
	Timeout time.Duration
	// Out receives the printed answer. Defaults to stdout.
	Out io.Writer
}

// errEmptyPatch is returned by SetThresholds when no limit was given.
var errEmptyPatch = errors.New("at least one of temperature_max or gas_max must be set")

// PostReading submits one reading and prints the verdict.
func PostReading(ctx context.Context, opts *Options, reading fire.SensorReading) error {
	ctx = logger.WithName(ctx, "fire-cli")

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	result, err := client.PostReading(ctx, reading)
	if err != nil {
		return err
	}

	out := output(opts)

	fmt.Fprintf(out, "%s (fire_alert=%t, camera_alert=%t)\n", result.Message, result.FireAlert, result.CameraAlert)

	switch {
	case result.EmailSent:
		fmt.Fprintln(out, "email: sent")
	case result.EmailError != nil:
		fmt.Fprintf(out, "email: %s\n", *result.EmailError)
	}

	return nil
}

// ShowStatus prints the current status and the latch.
func ShowStatus(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fire-cli")

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	snapshot, err := client.FireState(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(output(opts), "status: %s\nfire: %s\n", status, formatSnapshot(snapshot))

	return nil
}

// ShowThresholds prints the active thresholds.
func ShowThresholds(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fire-cli")

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	thresholds, err := client.Thresholds(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(output(opts), formatThresholds(thresholds))

	return nil
}

// SetThresholds applies patch and prints the new thresholds.
func SetThresholds(ctx context.Context, opts *Options, patch fire.ThresholdsPatch) error {
	if patch.TemperatureMax == nil && patch.GasMax == nil {
		return errEmptyPatch
	}

	ctx = logger.WithName(ctx, "fire-cli")

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	thresholds, err := client.UpdateThresholds(ctx, patch)
	if err != nil {
		return err
	}

	fmt.Fprintln(output(opts), formatThresholds(thresholds))

	return nil
}

// Reset clears the fire latch on the server.
func Reset(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "fire-cli")

	client, err := Connect(ctx, opts)
	if err != nil {
		return err
	}

	result, err := client.ResetFireState(ctx)
	if err != nil {
		return err
	}

	if !result.Reset {
		fmt.Fprintln(output(opts), "fire state was not confirmed, nothing to reset")

		return nil
	}

	fmt.Fprintf(output(opts), "fire state reset: %s\n", formatSnapshot(result.FireState))

	return nil
}

// Connect builds an API client from the settings and options.
func Connect(ctx context.Context, opts *Options) (*common.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	serverURL := cfg.Client.ServerURL
	if opts.ServerURL != "" {
		serverURL = opts.ServerURL
	}

	timeout := cfg.Client.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	actor, err := common.DetectActor()
	if err != nil {
		return nil, fmt.Errorf("detect actor: %w", err)
	}

	logger.DebugKV(ctx, "Connecting", "server_url", serverURL, "actor", actor)

	return common.NewClient(serverURL, common.WithCallTimeout(timeout), common.WithActor(actor))
}

func output(opts *Options) io.Writer {
	if opts.Out != nil {
		return opts.Out
	}

	return os.Stdout
}

// formatSnapshot converts a latch snapshot to a readable line.
func formatSnapshot(snapshot fire.Snapshot) string {
	if !snapshot.Confirmed {
		return fmt.Sprintf("not confirmed (transitions: %d)", snapshot.Transitions)
	}

	return fmt.Sprintf("confirmed by %s at %s (transitions: %d)",
		snapshot.Source, snapshot.ConfirmedAt.Format(time.RFC3339), snapshot.Transitions)
}

func formatThresholds(t fire.Thresholds) string {
	line := fmt.Sprintf("temperature_max: %.1f\ngas_max: %.1f", t.TemperatureMax, t.GasMax)

	if !t.UpdatedAt.IsZero() {
		line += fmt.Sprintf("\nupdated: %s", t.UpdatedAt.Format(time.RFC3339))
	}

	if t.UpdatedBy != "" {
		line += " by " + t.UpdatedBy
	}

	return line
}
