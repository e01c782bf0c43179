package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/client"
)

var (
	// reading collects the values of the reading command.
	reading fire.SensorReading

	readingCmd = &cobra.Command{
		Use:   "reading",
		Short: "Post one sensor reading.",
		Long: `Posts a sensor reading as a sensor would. A reading above the thresholds
confirms the fire, asks cameras for an image and sends an email.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.PostReading(ctx, options(cmd), reading)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := readingCmd.Flags()
	flags.Float64Var(&reading.Temperature, "temperature", 0, "temperature, °C")
	flags.Float64Var(&reading.Humidity, "humidity", 0, "relative humidity, %")
	flags.Float64Var(&reading.SmokeLevel, "smoke", 0, "smoke level")

	for _, name := range []string{"temperature", "humidity", "smoke"} {
		if err := readingCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
