package predict

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/f1predict/f1predict/internal/analysis"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/report"
)

// Command creates the command that prints one prediction without serving.
func Command(settings *conf.Settings, build buildinfo.BuildInfo) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "predict <track name>",
		Short:   "Predict a single Grand Prix",
		Example: `  f1predict predict "Monaco Grand Prix"` + "\n" + `  f1predict predict monte_carlo --json`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track := strings.Join(args, " ")
			p, err := analysis.PredictOnce(cmd.Context(), settings, build, track)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			return report.Prediction(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the prediction as JSON")
	return cmd
}
