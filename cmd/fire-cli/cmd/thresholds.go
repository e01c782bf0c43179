package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/client"
)

var (
	// temperatureMax and gasMax hold the set flags; unset flags are not sent.
	temperatureMax float64
	gasMax         float64

	thresholdsCmd = &cobra.Command{
		Use:   "thresholds",
		Short: "Read or change the alarm thresholds.",
	}

	thresholdsGetCmd = &cobra.Command{
		Use:   "get",
		Short: "Print the active thresholds.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.ShowThresholds(ctx, options(cmd))
		},
	}

	thresholdsSetCmd = &cobra.Command{
		Use:   "set",
		Short: "Change one or both thresholds.",
		Long: `Changes the thresholds. Omitted flags keep their current value.
The change is recorded with the current user@host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			var patch fire.ThresholdsPatch

			if cmd.Flags().Changed("temperature-max") {
				patch.TemperatureMax = &temperatureMax
			}

			if cmd.Flags().Changed("gas-max") {
				patch.GasMax = &gasMax
			}

			return client.SetThresholds(ctx, options(cmd), patch)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	thresholdsSetCmd.Flags().Float64Var(&temperatureMax, "temperature-max", 0, "temperature limit, °C")
	thresholdsSetCmd.Flags().Float64Var(&gasMax, "gas-max", 0, "smoke level limit")
}
