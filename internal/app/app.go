// Package app wires configuration, readers, core computations, storage and metrics into
// the runoff, calibrate and hypercube jobs.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/isohydro/internal/managers"
	"github.com/chrissnell/isohydro/internal/observability"
	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/config"
)

// Mode selects which jobs Run executes.
type Mode string

const (
	ModeRunoff    Mode = "runoff"
	ModeCalibrate Mode = "calibrate"
	ModeHypercube Mode = "hypercube"
	ModeAll       Mode = "all"
)

// ParseMode validates a -mode flag value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeRunoff, ModeCalibrate, ModeHypercube, ModeAll:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want runoff, calibrate, hypercube or all)", s)
}

// App represents the main application
type App struct {
	cfg     *config.ConfigData
	logger  *zap.SugaredLogger
	clock   clockwork.Clock
	metrics *observability.Metrics
	store   storage.TrialStore
}

// Option customizes an App.
type Option func(*App)

// WithClock replaces the wall clock used for run records.
func WithClock(clock clockwork.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// WithStore replaces the configured storage backends.
func WithStore(store storage.TrialStore) Option {
	return func(a *App) { a.store = store }
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		metrics: observability.NewMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Metrics returns the registry-backed metrics of this application.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

type job struct {
	kind string
	run  func(ctx context.Context, run *storage.Run) error
}

// Run executes the jobs selected by mode, in runoff, calibrate, hypercube order. ModeAll
// runs every job whose configuration section is present. The metrics textfile, when
// configured, is written even if a job fails.
func (a *App) Run(ctx context.Context, mode Mode) error {
	jobs, err := a.jobs(mode)
	if err != nil {
		return err
	}

	if a.store == nil {
		sm, err := managers.NewStorageManager(ctx, a.cfg.Storage, a.clock, a.logger)
		if err != nil {
			return err
		}
		defer sm.Close()
		a.store = sm
	}

	var errs []error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := a.runJob(ctx, j); err != nil {
			errs = append(errs, err)
		}
	}

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Debugf("metrics written to %s", path)
		}
	}

	return errors.Join(errs...)
}

func (a *App) jobs(mode Mode) ([]job, error) {
	all := []struct {
		mode    Mode
		present bool
		job     job
	}{
		{ModeRunoff, a.cfg.Runoff != nil && a.cfg.Runoff.OutputFile != "", job{storage.KindRunoff, a.runRunoff}},
		{ModeCalibrate, a.cfg.Calibration != nil, job{storage.KindCalibrate, a.runCalibrate}},
		{ModeHypercube, a.cfg.Hypercube != nil, job{storage.KindHypercube, a.runHypercube}},
	}

	var jobs []job
	for _, j := range all {
		switch {
		case mode == ModeAll && j.present:
			jobs = append(jobs, j.job)
		case mode == j.mode:
			if !j.present {
				return nil, fmt.Errorf("mode %s requires a %s configuration section", mode, j.job.kind)
			}
			jobs = append(jobs, j.job)
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("nothing to do: no runoff, calibration or hypercube section configured")
	}
	return jobs, nil
}

// runJob runs one job inside a run record. The record is saved whatever the outcome so
// failed runs are visible in storage.
func (a *App) runJob(ctx context.Context, j job) error {
	run := storage.NewRun(a.clock, j.kind)
	a.logger.Infow("job started", "job", j.kind, "run", run.ID)

	err := j.run(ctx, run)
	run.Finish(a.clock, err)
	a.metrics.JobDuration.WithLabelValues(j.kind, run.Status).Observe(run.Duration().Seconds())

	// Save with a fresh context so a cancelled job is still recorded.
	if serr := a.store.SaveRun(context.WithoutCancel(ctx), run); serr != nil {
		a.logger.Errorw("failed to save run record", "job", j.kind, "run", run.ID, "error", serr)
	}

	if err != nil {
		a.logger.Errorw("job failed", "job", j.kind, "run", run.ID, "duration", run.Duration(), "error", err)
		return fmt.Errorf("%s: %w", j.kind, err)
	}
	a.logger.Infow("job finished", "job", j.kind, "run", run.ID, "duration", run.Duration())
	return nil
}
