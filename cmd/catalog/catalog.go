package catalog

import (
	"github.com/spf13/cobra"

	"github.com/f1predict/f1predict/internal/report"
	"github.com/f1predict/f1predict/internal/season"
)

// Command creates the catalog command with its tracks and drivers listings.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the season's tracks and drivers",
	}

	tracksCmd := &cobra.Command{
		Use:   "tracks",
		Short: "List the calendar in round order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report.Tracks(cmd.OutOrStdout(), season.Default().Tracks())
		},
	}

	var byName bool
	driversCmd := &cobra.Command{
		Use:   "drivers",
		Short: "List drivers by baseline qualifying pace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := season.Default()
			drivers := catalog.DriversByBaseline()
			if byName {
				drivers = catalog.Drivers()
			}
			return report.Drivers(cmd.OutOrStdout(), drivers)
		},
	}
	driversCmd.Flags().BoolVar(&byName, "catalog-order", false, "Keep catalog order instead of sorting by baseline")

	cmd.AddCommand(tracksCmd, driversCmd)
	return cmd
}
