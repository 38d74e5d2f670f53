package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/isohydro/internal/forcing"
	"github.com/chrissnell/isohydro/internal/lhs"
	"github.com/chrissnell/isohydro/internal/storage"
)

// runHypercube writes one runoff forcing file per trial, each computed with the trial's
// hydrology and smoothing parameters on top of the runoff section.
func (a *App) runHypercube(ctx context.Context, run *storage.Run) error {
	h, rc := a.cfg.Hypercube, a.cfg.Runoff
	if h == nil || rc == nil {
		return fmt.Errorf("hypercube needs both hypercube and runoff configuration")
	}

	all, err := lhs.ReadSamples(h.ParameterFile)
	if err != nil {
		return err
	}
	trials, err := selectTrials(all, h.Trials)
	if err != nil {
		return fmt.Errorf("%s: %w", h.ParameterFile, err)
	}

	in, err := loadInputs(rc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(h.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := baseParams(rc)
	meltingSteps := make([]int, len(trials))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Workers, 1))
	for i, t := range trials {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			period, sigma := t.Smoothing()
			series, res := simulate(in, t.RunoffParams(base), period, sigma)

			runoffPath := filepath.Join(h.OutputDir, fmt.Sprintf(h.FilePattern, t.ID))
			accPath := ""
			if h.AccumulationPattern != "" {
				accPath = filepath.Join(h.OutputDir, fmt.Sprintf(h.AccumulationPattern, t.ID))
			}
			if err := forcing.WriteFiles(runoffPath, accPath, series, rc.Header); err != nil {
				return fmt.Errorf("trial %d: %w", t.ID, err)
			}

			meltingSteps[i] = res.MeltingSteps()
			a.metrics.TrialsGenerated.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	run.Trials = len(trials)
	run.Timesteps = len(in.steps)
	for _, m := range meltingSteps {
		run.MeltingSteps += m
	}

	a.logger.Infow("hypercube runoff written", "trials", len(trials), "dir", h.OutputDir)
	return nil
}

// selectTrials returns the trials whose ids are listed, in list order. An empty list
// selects every trial.
func selectTrials(trials []lhs.Trial, ids []int) ([]lhs.Trial, error) {
	if len(ids) == 0 {
		return trials, nil
	}
	byID := make(map[int]lhs.Trial, len(trials))
	for _, t := range trials {
		byID[t.ID] = t
	}
	out := make([]lhs.Trial, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("trial %d not in parameter file (%d trials)", id, len(trials))
		}
		out = append(out, t)
	}
	return out, nil
}
