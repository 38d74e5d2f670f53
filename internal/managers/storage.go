// Package managers assembles the configured storage backends behind a single TrialStore.
package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/internal/storage/sqlite"
	"github.com/chrissnell/isohydro/internal/storage/timescaledb"
	"github.com/chrissnell/isohydro/pkg/config"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

// StorageManager holds our active storage backends and fans every write out to all of
// them. With no backends configured it accepts and discards writes.
type StorageManager struct {
	Engines []StorageEngine
	logger  *zap.SugaredLogger
}

// StorageEngine pairs a backend with the name it was configured under
type StorageEngine struct {
	Name   string
	Engine storage.TrialStore
}

// NewStorageManager creates a StorageManager populated with every backend present in the
// storage configuration. Backends opened before a failure are closed again.
func NewStorageManager(ctx context.Context, c config.StorageData, clock clockwork.Clock, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{logger: logger}

	if c.SQLite != nil && c.SQLite.Path != "" {
		store, err := sqlite.New(ctx, c.SQLite.Path, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		s.AddEngine("sqlite", store)
	}

	if c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "" {
		store, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, c.TimescaleDB.Hypertable, clock, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		s.AddEngine("timescaledb", store)
	}

	if len(s.Engines) == 0 {
		logger.Info("no storage backends configured, results are written to files only")
	}

	return s, nil
}

// AddEngine adds a backend to the fan-out.
func (s *StorageManager) AddEngine(name string, engine storage.TrialStore) {
	s.Engines = append(s.Engines, StorageEngine{Name: name, Engine: engine})
	if s.logger != nil {
		s.logger.Infof("%s storage backend enabled", name)
	}
}

// SaveRun writes the run record to every backend. A failing backend does not stop the
// others; all failures are returned together.
func (s *StorageManager) SaveRun(ctx context.Context, run *storage.Run) error {
	return s.each(func(e StorageEngine) error {
		return e.Engine.SaveRun(ctx, run)
	})
}

// SaveStatistics writes one variable's statistics table to every backend.
func (s *StorageManager) SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error {
	return s.each(func(e StorageEngine) error {
		return e.Engine.SaveStatistics(ctx, runID, variable, records)
	})
}

// Close closes every backend.
func (s *StorageManager) Close() error {
	return s.each(func(e StorageEngine) error {
		return e.Engine.Close()
	})
}

func (s *StorageManager) each(fn func(StorageEngine) error) error {
	var errs []error
	for _, e := range s.Engines {
		if err := fn(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

var _ storage.TrialStore = (*StorageManager)(nil)
