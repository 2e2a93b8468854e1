package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/f1predict/f1predict/cmd/catalog"
	"github.com/f1predict/f1predict/cmd/history"
	"github.com/f1predict/f1predict/cmd/predict"
	"github.com/f1predict/f1predict/cmd/serve"
	"github.com/f1predict/f1predict/cmd/train"
	"github.com/f1predict/f1predict/cmd/version"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "f1predict",
		Short:         "F1 qualifying and race prediction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var modelDir string
	if err := setupFlags(rootCmd, settings, &modelDir); err != nil {
		panic(err)
	}

	versionCmd := version.Command(build)
	catalogCmd := catalog.Command()

	rootCmd.AddCommand(
		serve.Command(settings, build),
		predict.Command(settings, build),
		train.Command(settings),
		history.Command(settings),
		catalogCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if rootCmd.PersistentFlags().Changed("model-dir") {
			settings.SetModelDir(modelDir)
		}

		// version and catalog only print static data
		for c := cmd; c != nil; c = c.Parent() {
			if c == versionCmd || c == catalogCmd {
				return nil
			}
		}
		return initialize(settings, build)
	}

	return rootCmd
}

// initialize installs the global logger and, when enabled, Sentry reporting.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	cl, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(cl)

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, settings.Main.Environment, build.GetVersion()); err != nil {
			logger.Global().Module("main").Warn("sentry disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, modelDir *string) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(modelDir, "model-dir", viper.GetString("model.dir"), "Directory holding the model artifacts")
	rootCmd.PersistentFlags().IntVar(&settings.Prediction.Season, "season", viper.GetInt("prediction.season"), "Season to predict")
	rootCmd.PersistentFlags().StringVar(&settings.History.Backend, "history-backend", viper.GetString("history.backend"), "Race history backend (csv, sqlite or mysql)")
	rootCmd.PersistentFlags().StringVar(&settings.History.DataDir, "data-dir", viper.GetString("history.datadir"), "Directory of race_data_*.csv files")
	rootCmd.PersistentFlags().StringVar(&settings.History.DBPath, "db", viper.GetString("history.dbpath"), "SQLite race history database")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
