package history

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/report"
	"github.com/f1predict/f1predict/internal/season"
)

// Command creates the history command with its import and form subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the race history used for driver form",
	}
	cmd.AddCommand(importCommand(settings), formCommand(settings))
	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import race_data_*.csv results into the history database",
		Long:  "Import race_data_*.csv results into the MySQL database when history.backend is mysql, otherwise into SQLite.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog := season.Default()

			src, err := history.NewCSVStore(ctx, settings.History.DataDir, catalog)
			if err != nil {
				return err
			}
			defer src.Close()

			dst, target, err := openImportTarget(&settings.History)
			if err != nil {
				return err
			}
			defer dst.Close()

			n, err := dst.Import(ctx, src.AllResults())
			if err != nil {
				return err
			}
			logger.Global().Module("history").Info("history import finished",
				logger.String("from", settings.History.DataDir),
				logger.String("to", target),
				logger.Int("records", n))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d results into %s\n", n, target)
			return err
		},
	}
}

func openImportTarget(h *conf.HistorySettings) (*history.DBStore, string, error) {
	if h.Backend == conf.HistoryBackendMySQL {
		store, err := history.OpenMySQL(history.MySQLConfigFrom(h.MySQL))
		return store, "mysql://" + h.MySQL.Host + "/" + h.MySQL.Database, err
	}
	store, err := history.OpenSQLite(h.DBPath)
	return store, h.DBPath, err
}

func formCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "form <driver>",
		Short:   "Show a driver's recent results and form",
		Example: `  f1predict history form "Lando Norris"` + "\n" + `  f1predict history form VER --races 10`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog := season.Default()

			query := strings.Join(args, " ")
			driver, ok := catalog.DriverByName(query)
			if !ok {
				driver, ok = catalog.DriverByAbbreviation(query)
			}
			if !ok {
				return errors.Newf("unknown driver %q", query).
					Component("history").
					Category(errors.CategoryNotFound).
					Build()
			}

			store, err := history.Open(ctx, &settings.History, catalog)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.RecentResults(ctx, driver.Name, settings.Prediction.RecentRaces)
			if err != nil {
				return err
			}
			form := history.BaselineForm(driver)
			if len(results) > 0 {
				form = history.CalculateForm(results)
			}
			return report.Form(cmd.OutOrStdout(), driver.Name, results, form)
		},
	}
	cmd.Flags().IntVar(&settings.Prediction.RecentRaces, "races", viper.GetInt("prediction.recentraces"), "Number of recent races")
	return cmd
}
