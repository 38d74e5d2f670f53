// Package storage defines the interface and record types for persisting calibration and
// runoff runs.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/chrissnell/isohydro/pkg/tableformat"
)

// Run kinds.
const (
	KindRunoff    = "runoff"
	KindCalibrate = "calibrate"
	KindHypercube = "hypercube"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one execution of a job.
type Run struct {
	ID         uuid.UUID
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Message    string

	Timesteps        int
	MeltingSteps     int
	SubstitutedSteps int
	Trials           int
	Accepted         int
}

// NewRun starts a run of the given kind at the clock's current time.
func NewRun(clock clockwork.Clock, kind string) *Run {
	return &Run{
		ID:        uuid.New(),
		Kind:      kind,
		StartedAt: clock.Now().UTC(),
	}
}

// Finish stamps the run with the clock's current time and the outcome of err.
func (r *Run) Finish(clock clockwork.Clock, err error) {
	r.FinishedAt = clock.Now().UTC()
	if err != nil {
		r.Status = StatusFailed
		r.Message = err.Error()
		return
	}
	r.Status = StatusOK
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// TrialStore persists runs and the statistics tables they produce.
type TrialStore interface {
	SaveRun(ctx context.Context, run *Run) error
	SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error
	Close() error
}
