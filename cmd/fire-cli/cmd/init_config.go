package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a settings file with default values.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFilename
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.Save(path, config.Default()); err != nil {
			return err
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "settings written to %s\n", path)

		return err
	},
}
