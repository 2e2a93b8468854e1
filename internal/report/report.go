// Package report renders predictions, catalog listings and training results
// as terminal tables for the CLI.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/f1predict/f1predict/internal/history"
	"github.com/f1predict/f1predict/internal/model"
	"github.com/f1predict/f1predict/internal/prediction"
	"github.com/f1predict/f1predict/internal/season"
	"github.com/f1predict/f1predict/internal/training"
)

var (
	liveColor     = color.New(color.FgGreen, color.Bold)
	fallbackColor = color.New(color.FgYellow)
	podiumColor   = color.New(color.FgHiWhite, color.Bold)
	titleColor    = color.New(color.FgCyan, color.Bold)
	warnColor     = color.New(color.FgRed)
)

// sourceLabel colors a live/fallback tag.
func sourceLabel(source string) string {
	if source == "live" {
		return liveColor.Sprint(source)
	}
	return fallbackColor.Sprint(source)
}

func render(w io.Writer, headers []string, rows [][]string, rightAlign bool) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header(headers)
	if rightAlign {
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
func pct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}

// Prediction prints the header block, driver ranking and constructor ranking.
func Prediction(w io.Writer, p *prediction.Prediction) error {
	fmt.Fprintf(w, "%s  (round %d, %d)\n", titleColor.Sprint(p.Race), p.RoundNumber, p.Season)
	fmt.Fprintf(w, "Weather: %s, air %s°C, track %s°C, humidity %s%%  [%s]\n",
		p.Weather.Condition, f1(p.Weather.AirTemp), f1(p.Weather.TrackTemp), f1(p.Weather.Humidity),
		sourceLabel(string(p.Weather.Source)))
	fmt.Fprintf(w, "Qualifying: %s  [%s]\n", p.Meta.QualifyingOrigin, sourceLabel(string(p.Meta.QualifyingDataSource)))
	fmt.Fprintf(w, "Model: %s\n", p.Meta.ModelVersion)
	if p.Meta.Partial {
		fmt.Fprintln(w, warnColor.Sprintf("Partial result, omitted: %v", p.Meta.OmittedDrivers))
	}
	fmt.Fprintln(w)

	rows := make([][]string, 0, len(p.PredictedDriverResults))
	for _, d := range p.PredictedDriverResults {
		name := d.Driver
		if d.PredictedPosition <= 3 {
			name = podiumColor.Sprint(name)
		}
		rows = append(rows, []string{
			strconv.Itoa(d.PredictedPosition),
			name,
			d.Team,
			f1(d.QualifyingPosition),
			f2(d.Score),
			pct(d.ProbabilityTop3),
			pct(d.ProbabilityPoints),
			d.Form.Trend,
		})
	}
	if err := render(w, []string{"Pos", "Driver", "Team", "Grid", "Score", "Top 3", "Points", "Trend"}, rows, false); err != nil {
		return err
	}
	fmt.Fprintln(w)

	rows = rows[:0]
	for _, c := range p.PredictedConstructorResults {
		rows = append(rows, []string{
			strconv.Itoa(c.PredictedPosition),
			c.Team,
			strconv.Itoa(c.PredictedPoints),
			f1(c.ExpectedPoints),
		})
	}
	return render(w, []string{"Pos", "Constructor", "Points", "Expected"}, rows, false)
}

// Tracks prints the calendar.
func Tracks(w io.Writer, tracks []season.Track) error {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.Itoa(t.Round), t.Name, t.Key, t.City, t.Type, f1(t.AvgLapTime),
		})
	}
	return render(w, []string{"Round", "Grand Prix", "Key", "City", "Type", "Lap (s)"}, rows, false)
}

// Drivers prints the roster in the given order.
func Drivers(w io.Writer, drivers []season.Driver) error {
	rows := make([][]string, 0, len(drivers))
	for _, d := range drivers {
		rows = append(rows, []string{
			d.Abbreviation, d.Name, strconv.Itoa(d.Number), d.Team, f1(d.BaselineQualifying),
		})
	}
	return render(w, []string{"Code", "Driver", "No", "Team", "Baseline"}, rows, false)
}

// Training prints the evaluation metrics of a training run.
func Training(w io.Writer, r *training.Report) error {
	fmt.Fprintf(w, "%s %s  races=%d skipped_rows=%d duration=%s\n",
		titleColor.Sprint("Model"), r.Version, r.Races, r.Skipped, r.Duration.Round(time.Millisecond))
	rows := [][]string{
		metricsRow("driver", r.DriverSamples, r.Driver),
		metricsRow("constructor", r.ConstructorSamples, r.Constructor),
	}
	if err := render(w, []string{"Model", "Samples", "Train", "MAE", "RMSE", "R²"}, rows, true); err != nil {
		return err
	}
	fmt.Fprintf(w, "Artifacts: %s, %s, %s\n", r.Paths.Driver, r.Paths.Constructor, r.Paths.Encoding)
	return nil
}

func metricsRow(name string, samples int, m model.Metrics) []string {
	return []string{
		name,
		strconv.Itoa(samples),
		strconv.Itoa(m.Train),
		f2(m.MAE),
		f2(m.RMSE),
		strconv.FormatFloat(m.R2, 'f', 3, 64),
	}
}

// Form prints recent results of one driver.
func Form(w io.Writer, driver string, results []history.RaceResult, form history.DriverForm) error {
	fmt.Fprintf(w, "%s  avg %s, points %s, trend %s\n", titleColor.Sprint(driver),
		f1(form.AvgPosition), f1(form.PointsLastN), form.Trend)
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		pos := strconv.Itoa(r.Position)
		if !r.Classified() {
			pos = "DNF"
		}
		rows = append(rows, []string{strconv.Itoa(r.Season), strconv.Itoa(r.Round), r.Race, pos, f1(r.Points)})
	}
	return render(w, []string{"Season", "Round", "Race", "Pos", "Points"}, rows, false)
}
