package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/service/server"
	"github.com/oshokin/fire-watch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// databasePath overrides database_path.
	databasePath string
	// allowMultiple skips the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the fire-watch service.
	rootCmd = &cobra.Command{
		Use:   "fire-server [listen-address]",
		Short: "Run the fire-watch detection service.",
		Long: `Starts the fire-watch service: the HTTP API for sensors and cameras,
websocket alert fan-out for dashboards and cameras, and the fire latch.

Settings are read from fire-watch-settings.yaml unless --config is given.
Listen address can be provided as argument to override http_addr (e.g., :9000).
Use --database :memory: to keep history in memory only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				DatabasePath:  databasePath,
				AllowMultiple: allowMultiple,
			})
		},
	}
)

// Execute runs the fire-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default fire-watch-settings.yaml)")
	rootCmd.Flags().StringVarP(&databasePath, "database", "d", "", "SQLite database path, overrides database_path")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "skip the single-instance check")
}
