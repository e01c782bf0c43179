package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/service/client"
	"github.com/oshokin/fire-watch/internal/version"
)

var (
	// connection holds the persistent flags shared by every subcommand.
	connection client.Options

	// rootCmd represents the base command of the operator client.
	rootCmd = &cobra.Command{
		Use:   "fire-cli",
		Short: "Operate a fire-watch server.",
		Long: `Operator client for the fire-watch service.

Posts test readings, reads and changes thresholds, shows the fire status,
watches dashboard or camera alerts and resets a confirmed fire.
The server URL comes from client.server_url unless --server is given.`,
		SilenceUsage: true,
	}
)

// Execute runs the fire-cli CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// options returns the connection flags with the command's output attached.
func options(cmd *cobra.Command) *client.Options {
	opts := connection
	opts.Out = cmd.OutOrStdout()

	return &opts
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&connection.ConfigPath, "config", "c", "", "path to configuration file (default fire-watch-settings.yaml)")
	flags.StringVarP(&connection.ServerURL, "server", "s", "", "server URL, overrides client.server_url")
	flags.DurationVarP(&connection.Timeout, "timeout", "t", 0, "per-call timeout, overrides client.timeout")

	rootCmd.AddCommand(readingCmd, statusCmd, thresholdsCmd, resetCmd, watchCmd, initConfigCmd)
	thresholdsCmd.AddCommand(thresholdsGetCmd, thresholdsSetCmd)
}
