package scoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/isohydro/internal/ensemble"
)

// TrialFit is the fit of one ensemble output file.
type TrialFit struct {
	TrialID int
	File    string
	Fit
}

// Scorer rates ensemble output files against a set of daily observations. Days holds
// the 1-based day of year of each Observed value.
type Scorer struct {
	Observed []float64
	Days     []int
	Layout   ensemble.Layout
	Workers  int

	logger *zap.SugaredLogger
}

// NewScorer returns a scorer for the given observations. workers bounds the number of
// files read at once; values below 1 mean one.
func NewScorer(logger *zap.SugaredLogger, observed []float64, days []int, layout ensemble.Layout, workers int) (*Scorer, error) {
	if len(observed) != len(days) {
		return nil, fmt.Errorf("%d observations with %d observation days", len(observed), len(days))
	}
	if len(observed) == 0 {
		return nil, fmt.Errorf("no observations to score against")
	}
	if workers < 1 {
		workers = 1
	}
	return &Scorer{
		Observed: observed,
		Days:     days,
		Layout:   layout,
		Workers:  workers,
		logger:   logger,
	}, nil
}

// ScoreTrial reads one output file and scores it. It touches no shared state.
func (s *Scorer) ScoreTrial(id int, path string) (TrialFit, error) {
	out, err := ensemble.Read(path, id, s.Layout)
	if err != nil {
		return TrialFit{}, fmt.Errorf("trial %d: %w", id, err)
	}
	sim, err := ensemble.Subsample(out.Values, s.Days)
	if err != nil {
		return TrialFit{}, fmt.Errorf("trial %d (%s): %w", id, path, err)
	}
	return TrialFit{TrialID: id, File: path, Fit: Score(sim, s.Observed)}, nil
}

// ScoreFiles scores every file of a Discover result, in ascending trial id order. The
// first read error cancels the remaining work.
func (s *Scorer) ScoreFiles(ctx context.Context, files map[int]string) ([]TrialFit, error) {
	ids := ensemble.SortedIDs(files)
	fits := make([]TrialFit, len(ids))

	if Score(s.Observed, s.Observed).NSE != 1 {
		s.logger.Warnf("observations have no variance, NSE and RSR are undefined for every trial")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fit, err := s.ScoreTrial(id, files[id])
			if err != nil {
				return err
			}
			fits[i] = fit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debugf("scored %d trials", len(fits))
	return fits, nil
}
