package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/service/client"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the fire status and the latch.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.ShowStatus(ctx, options(cmd))
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset a confirmed fire.",
		Long: `Clears the fire latch so sensor readings are processed again.
The reset is recorded in the status log with the current user@host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Reset(ctx, options(cmd))
		},
	}
)
