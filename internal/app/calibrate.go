package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/chrissnell/isohydro/internal/ensemble"
	"github.com/chrissnell/isohydro/internal/lhs"
	"github.com/chrissnell/isohydro/internal/observation"
	"github.com/chrissnell/isohydro/internal/scoring"
	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/config"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

// Statistics tables written per variable, named <variable>-<table>.<ext>.
const (
	TableStatistics = "statistics"
	TableAccepted   = "accepted"
	TableRanked     = "ranked"
)

func (a *App) runCalibrate(ctx context.Context, run *storage.Run) error {
	cal := a.cfg.Calibration
	if cal == nil {
		return fmt.Errorf("no calibration configuration")
	}

	format, err := tableformat.ParseFormat(cal.Format)
	if err != nil {
		return err
	}

	trials, err := lhs.ReadSamples(cal.ParameterFile)
	if err != nil {
		return err
	}
	a.logger.Debugf("read %d trials from %s", len(trials), cal.ParameterFile)

	observed, days, err := loadObservations(cal.Observations)
	if err != nil {
		return err
	}
	a.logger.Infof("scoring against %d observation days from %s", len(days), cal.Observations.File)

	if err := os.MkdirAll(cal.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	criteria := scoring.Criteria{MinNSE: *cal.NSEThreshold, MaxRSR: cal.MaxRSR}

	// Join failures are collected across variables; every other error stops the job.
	var joinErrs []error
	for _, v := range cal.Variables {
		rows, err := a.scoreVariable(ctx, cal, v, trials, observed, days)
		if err != nil {
			var joinErr interface{ Unwrap() []error }
			if rows == nil || !errors.As(err, &joinErr) {
				return err
			}
			a.metrics.JoinFailures.Add(float64(len(joinErr.Unwrap())))
			joinErrs = append(joinErrs, fmt.Errorf("%s: %w", v.Name, err))
		}

		accepted, err := a.writeTables(ctx, run, cal, format, criteria, v.Name, rows)
		if err != nil {
			return err
		}
		run.Accepted += accepted
	}

	return errors.Join(joinErrs...)
}

func loadObservations(oc config.ObservationData) (observed []float64, days []int, err error) {
	daily, err := observation.Read(oc.File, observation.Options{
		DateColumn:  oc.DateColumn,
		ValueColumn: oc.ValueColumn,
		Layout:      oc.DateLayout,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(oc.Days) > 0 {
		daily, err = observation.WithDays(daily, oc.Days)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", oc.File, err)
		}
	}
	return observation.Values(daily), observation.DaysOfYear(daily), nil
}

// scoreVariable scores one ensemble variable and joins the fits to the trials. Join
// failures come back with the joined rows; any other error returns nil rows.
func (a *App) scoreVariable(ctx context.Context, cal *config.CalibrationData, v config.VariableData, trials []lhs.Trial, observed []float64, days []int) ([]scoring.Row, error) {
	files, err := ensemble.Discover(cal.EnsembleDir, v.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		a.logger.Warnf("no ensemble files match %s in %s", v.Pattern, cal.EnsembleDir)
	}

	layout := ensemble.Layout{Skip: *v.Skip, Header: *v.Header, Rows: v.Rows, Column: *v.Column}
	scorer, err := scoring.NewScorer(a.logger.Named(v.Name), observed, days, layout, a.cfg.Workers)
	if err != nil {
		return nil, err
	}

	fits, err := scorer.ScoreFiles(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.Name, err)
	}
	a.metrics.TrialsScored.WithLabelValues(v.Name).Add(float64(len(fits)))

	return scoring.Join(trials, fits)
}

// writeTables writes the full, accepted and ranked tables of one variable and saves the
// full table to storage. It returns the number of accepted trials.
func (a *App) writeTables(ctx context.Context, run *storage.Run, cal *config.CalibrationData, format tableformat.Format, criteria scoring.Criteria, variable string, rows []scoring.Row) (int, error) {
	accepted := scoring.Accepted(rows, criteria)
	ranked := scoring.TopN(rows, cal.TopN)

	simulated := 0
	for _, r := range rows {
		if r.Simulated {
			simulated++
		}
	}
	run.Trials += simulated

	all := tableformat.FromRows(rows, criteria)
	tables := []struct {
		name    string
		records []tableformat.Record
	}{
		{TableStatistics, all},
		{TableAccepted, tableformat.FromRows(accepted, criteria)},
		{TableRanked, tableformat.FromRows(ranked, criteria)},
	}

	formatter := tableformat.NewFormatter()
	for _, t := range tables {
		path := filepath.Join(cal.OutputDir, fmt.Sprintf("%s-%s.%s", variable, t.name, format.Extension()))
		if err := writeTable(formatter, path, format, t.records); err != nil {
			return 0, err
		}
	}

	if err := a.store.SaveStatistics(ctx, run.ID, variable, all); err != nil {
		return 0, fmt.Errorf("failed to save %s statistics: %w", variable, err)
	}

	a.metrics.TrialsAccepted.WithLabelValues(variable).Set(float64(len(accepted)))
	best := math.NaN()
	if len(ranked) > 0 {
		best = ranked[0].NSE
	}
	if !math.IsNaN(best) {
		a.metrics.BestNSE.WithLabelValues(variable).Set(best)
	}

	a.logger.Infow("calibration statistics written",
		"variable", variable,
		"trials", len(rows),
		"simulated", simulated,
		"accepted", len(accepted),
		"best_nse", best,
	)
	return len(accepted), nil
}

func writeTable(formatter *tableformat.Formatter, path string, format tableformat.Format, records []tableformat.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := formatter.Write(f, format, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
