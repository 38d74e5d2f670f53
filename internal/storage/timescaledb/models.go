package timescaledb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

// RunModel is the row of a job run.
type RunModel struct {
	ID               string     `gorm:"primaryKey;column:id;type:uuid"`
	Kind             string     `gorm:"column:kind;not null"`
	StartedAt        time.Time  `gorm:"column:started_at;not null"`
	FinishedAt       *time.Time `gorm:"column:finished_at"`
	Status           string     `gorm:"column:status"`
	Message          string     `gorm:"column:message"`
	Timesteps        int        `gorm:"column:timesteps"`
	MeltingSteps     int        `gorm:"column:melting_steps"`
	SubstitutedSteps int        `gorm:"column:substituted_steps"`
	Trials           int        `gorm:"column:trials"`
	Accepted         int        `gorm:"column:accepted"`
}

// TableName specifies the table name for RunModel
func (RunModel) TableName() string {
	return "isohydro_runs"
}

// StatisticModel is one trial row of a statistics table. The table is a hypertable on
// created_at, so it carries no primary key of its own.
type StatisticModel struct {
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	RunID     string    `gorm:"column:run_id;type:uuid;index:idx_statistics_run,priority:1"`
	Variable  string    `gorm:"column:variable;index:idx_statistics_run,priority:2"`
	Trial     int       `gorm:"column:trial"`
	Simulated bool      `gorm:"column:simulated"`
	NSE       *float64  `gorm:"column:nse"`
	RSR       *float64  `gorm:"column:rsr"`
	Bias      *float64  `gorm:"column:bias"`
	Accepted  bool      `gorm:"column:accepted"`
	Params    string    `gorm:"column:params;type:jsonb"`
}

// TableName specifies the table name for StatisticModel
func (StatisticModel) TableName() string {
	return "trial_statistics"
}

func runModel(r *storage.Run) RunModel {
	m := RunModel{
		ID:               r.ID.String(),
		Kind:             r.Kind,
		StartedAt:        r.StartedAt,
		Status:           r.Status,
		Message:          r.Message,
		Timesteps:        r.Timesteps,
		MeltingSteps:     r.MeltingSteps,
		SubstitutedSteps: r.SubstitutedSteps,
		Trials:           r.Trials,
		Accepted:         r.Accepted,
	}
	if !r.FinishedAt.IsZero() {
		f := r.FinishedAt
		m.FinishedAt = &f
	}
	return m
}

func statisticModels(runID, variable string, at time.Time, records []tableformat.Record) ([]StatisticModel, error) {
	out := make([]StatisticModel, len(records))
	for i, r := range records {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode parameters of trial %d: %w", r.Trial, err)
		}
		out[i] = StatisticModel{
			CreatedAt: at,
			RunID:     runID,
			Variable:  variable,
			Trial:     r.Trial,
			Simulated: r.Simulated,
			NSE:       r.NSE,
			RSR:       r.RSR,
			Bias:      r.Bias,
			Accepted:  r.Accepted,
			Params:    string(params),
		}
	}
	return out, nil
}
