package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/service/checker"
)

var watchCmd = &cobra.Command{
	Use:       "watch <dashboard|camera>",
	Short:     "Print alerts of a subscriber group.",
	Long:      `Subscribes to the websocket group and prints every message as JSON, one per line.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(alert.GroupDashboard), string(alert.GroupCamera)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		group, err := alert.ParseGroup(args[0])
		if err != nil {
			return err
		}

		return checker.Run(ctx, &checker.Options{
			Options: *options(cmd),
			Group:   group,
		})
	},
}
