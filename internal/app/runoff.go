package app

import (
	"context"
	"fmt"
	"math"

	"github.com/chrissnell/isohydro/internal/forcing"
	"github.com/chrissnell/isohydro/internal/runoff"
	"github.com/chrissnell/isohydro/internal/smoothing"
	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/internal/types"
	"github.com/chrissnell/isohydro/pkg/config"
)

// inputs are the forcing series and the precipitation seasonality shared by every
// runoff computation of a job.
type inputs struct {
	steps []types.TimeStep
	sigs  types.MonthlySignatures
}

func loadInputs(rc *config.RunoffData) (*inputs, error) {
	steps, err := forcing.ReadForcing(rc.ForcingFile)
	if err != nil {
		return nil, err
	}
	sigs, err := forcing.ReadSignatures(rc.IsotopeFile)
	if err != nil {
		return nil, err
	}
	return &inputs{steps: steps, sigs: sigs}, nil
}

// baseParams builds engine parameters from the runoff section. Unset ratios and
// thresholds are zero; callers either require them or overlay a trial.
func baseParams(rc *config.RunoffData) runoff.Params {
	return runoff.Params{
		MeltRatio:     deref(rc.MeltRatio),
		RPRatioSummer: deref(rc.RPRatioSummer),
		RPRatioWinter: deref(rc.RPRatioWinter),
		RSMRatio:      deref(rc.RSMRatio),
		GlacierFlux:   rc.GlacierFlux,
		ThreshSpring:  derefInt(rc.ThreshSpring),
		ThreshFall:    derefInt(rc.ThreshFall),
		ThreshAvg:     rc.ThreshAvg,
		FreezingPoint: rc.FreezingPoint,
		StepsPerDay:   rc.StepsPerDay,
		SummerMonths:  rc.SummerMonths,
		SpringMonths:  rc.SpringMonths,
		ThawMonths:    rc.ThawMonths,
		FallMonths:    rc.FallMonths,
	}
}

// simulate runs the engine over the inputs and smooths the runoff and its isotopes into
// an export series.
func simulate(in *inputs, p runoff.Params, period, sigma float64) (*forcing.Series, *runoff.Result) {
	res := runoff.NewEngine(p, in.sigs).Run(in.steps)
	filter := smoothing.New(period, sigma)

	d18O := make([]float64, res.Len())
	d2H := make([]float64, res.Len())
	for i, c := range res.RunoffIso {
		d18O[i], d2H[i] = isotopes(c)
	}

	return &forcing.Series{
		Steps:           in.steps,
		Runoff:          filter.Apply(res.Runoff),
		D18OR:           filter.FluxWeighted(res.Runoff, d18O),
		D2HR:            filter.FluxWeighted(res.Runoff, d2H),
		Precip:          res.Precip,
		Accumulation:    res.Accumulation,
		AccumulationIso: res.AccumulationIso,
	}, res
}

func (a *App) runRunoff(ctx context.Context, run *storage.Run) error {
	rc := a.cfg.Runoff
	if rc == nil {
		return fmt.Errorf("no runoff configuration")
	}
	if err := rc.RequireRunoffParams(); err != nil {
		return err
	}

	in, err := loadInputs(rc)
	if err != nil {
		return err
	}
	a.logger.Debugf("read %d forcing timesteps from %s", len(in.steps), rc.ForcingFile)

	series, res := simulate(in, baseParams(rc), deref(rc.Period), deref(rc.Sigma))
	if err := forcing.WriteFiles(rc.OutputFile, rc.AccumulationFile, series, rc.Header); err != nil {
		return err
	}

	run.Timesteps = res.Len()
	run.MeltingSteps = res.MeltingSteps()
	run.SubstitutedSteps = res.SubstitutedSteps()

	a.metrics.Timesteps.Add(float64(run.Timesteps))
	a.metrics.MeltingSteps.Add(float64(run.MeltingSteps))
	a.metrics.SubstitutedSteps.Add(float64(run.SubstitutedSteps))

	a.logger.Infow("runoff written",
		"file", rc.OutputFile,
		"accumulation", rc.AccumulationFile,
		"timesteps", run.Timesteps,
		"melting", run.MeltingSteps,
		"substituted", run.SubstitutedSteps,
	)
	return nil
}

func isotopes(c types.Composition) (d18O, d2H float64) {
	if !c.Defined {
		return math.NaN(), math.NaN()
	}
	return c.D18O, c.D2H
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
