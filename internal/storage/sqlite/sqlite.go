// Package sqlite stores runs and trial statistics in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	started_at        TIMESTAMP NOT NULL,
	finished_at       TIMESTAMP,
	status            TEXT,
	message           TEXT,
	timesteps         INTEGER DEFAULT 0,
	melting_steps     INTEGER DEFAULT 0,
	substituted_steps INTEGER DEFAULT 0,
	trials            INTEGER DEFAULT 0,
	accepted          INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trial_statistics (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	variable  TEXT NOT NULL,
	trial     INTEGER NOT NULL,
	simulated BOOLEAN NOT NULL,
	nse       REAL,
	rsr       REAL,
	bias      REAL,
	accepted  BOOLEAN NOT NULL,
	params    TEXT NOT NULL,
	PRIMARY KEY (run_id, variable, trial)
);

CREATE INDEX IF NOT EXISTS idx_trial_statistics_nse ON trial_statistics(run_id, variable, nse);
`

// Store implements storage.TrialStore on SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.SugaredLogger
}

var _ storage.TrialStore = (*Store)(nil)

// New opens the database at dbPath, creating the schema if needed.
func New(ctx context.Context, dbPath string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create SQLite schema: %w", err)
	}

	logger.Debugf("opened SQLite run store at %s", dbPath)
	return &Store{db: db, dbPath: dbPath, logger: logger}, nil
}

// SaveRun inserts a run record or updates the one with the same id.
func (s *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	query := `
		INSERT INTO runs
			(id, kind, started_at, finished_at, status, message,
			 timesteps, melting_steps, substituted_steps, trials, accepted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			message = excluded.message,
			timesteps = excluded.timesteps,
			melting_steps = excluded.melting_steps,
			substituted_steps = excluded.substituted_steps,
			trials = excluded.trials,
			accepted = excluded.accepted
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(), run.Kind, run.StartedAt, nullTime(run.FinishedAt), run.Status, run.Message,
		run.Timesteps, run.MeltingSteps, run.SubstitutedSteps, run.Trials, run.Accepted,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveStatistics writes one statistics table in a single transaction.
func (s *Store) SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO trial_statistics
			(run_id, variable, trial, simulated, nse, rsr, bias, accepted, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statistics insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("failed to encode parameters of trial %d: %w", r.Trial, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID.String(), variable, r.Trial, r.Simulated,
			nullFloat(r.NSE), nullFloat(r.RSR), nullFloat(r.Bias),
			r.Accepted, string(params),
		); err != nil {
			return fmt.Errorf("failed to save statistics of trial %d: %w", r.Trial, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit statistics: %w", err)
	}
	s.logger.Debugf("saved %d %s statistics rows for run %s", len(records), variable, runID)
	return nil
}

// LoadStatistics reads back a statistics table ordered by trial.
func (s *Store) LoadStatistics(ctx context.Context, runID uuid.UUID, variable string) ([]tableformat.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trial, simulated, nse, rsr, bias, accepted, params
		FROM trial_statistics
		WHERE run_id = ? AND variable = ?
		ORDER BY trial
	`, runID.String(), variable)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var out []tableformat.Record
	for rows.Next() {
		var (
			r             tableformat.Record
			nse, rsr, bia sql.NullFloat64
			params        string
		)
		if err := rows.Scan(&r.Trial, &r.Simulated, &nse, &rsr, &bia, &r.Accepted, &params); err != nil {
			return nil, fmt.Errorf("failed to scan statistics row: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters of trial %d: %w", r.Trial, err)
		}
		r.NSE, r.RSR, r.Bias = floatPtr(nse), floatPtr(rsr), floatPtr(bia)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
