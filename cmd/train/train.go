package train

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/report"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/training"
)

// Command creates the command that regenerates the model artifacts.
func Command(settings *conf.Settings) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the driver and constructor models",
		Long:  "Fit both ridge models from the race_data_*.csv history and write the artifacts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := training.ConfigFromSettings(settings)
			cfg.Version = version
			cfg.Logger = logger.Global().Module("training")

			r, err := training.Run(cmd.Context(), cfg, season.Default())
			if err != nil {
				return err
			}
			return report.Training(cmd.OutOrStdout(), r)
		},
	}

	if err := setupFlags(cmd, settings, &version); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, version *string) error {
	cmd.Flags().StringVar(&settings.Training.DataDir, "data", viper.GetString("training.datadir"), "Directory of race_data_*.csv files")
	cmd.Flags().StringVarP(&settings.Training.OutputDir, "output", "o", viper.GetString("training.outputdir"), "Directory to write the artifacts to")
	cmd.Flags().Uint64Var(&settings.Training.Seed, "seed", viper.GetUint64("training.seed"), "Seed for the train/test split")
	cmd.Flags().Float64Var(&settings.Training.Lambda, "lambda", viper.GetFloat64("training.lambda"), "Ridge penalty")
	cmd.Flags().Float64Var(&settings.Training.TestFraction, "test-fraction", viper.GetFloat64("training.testfraction"), "Share of samples held out for evaluation")
	cmd.Flags().StringVar(version, "version", "", "Artifact version (defaults to a UTC timestamp)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
