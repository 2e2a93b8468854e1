package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/f1predict/f1predict/internal/analysis"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
)

// Command creates the command that runs the HTTP prediction service.
func Command(settings *conf.Settings, build buildinfo.BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP API",
		Long:  "Load the model artifacts and serve predictions over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return analysis.Serve(ctx, settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Listen address")
	cmd.Flags().IntVarP(&settings.WebServer.Port, "port", "p", viper.GetInt("webserver.port"), "Listen port")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Expose Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish predictions to the MQTT broker")
	cmd.Flags().BoolVar(&settings.Prediction.PartialResults, "partial", viper.GetBool("prediction.partialresults"), "Omit drivers with malformed features instead of failing")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

