// Package timescaledb stores runs and trial statistics in TimescaleDB (or plain
// PostgreSQL) through gorm.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/isohydro/internal/log"
	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

// Store implements storage.TrialStore on TimescaleDB.
type Store struct {
	DB     *gorm.DB
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

var _ storage.TrialStore = (*Store)(nil)

const pingTimeout = 10 * time.Second

// CreateConnection opens a gorm connection with the standard logger configuration.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// New connects, migrates the schema and, when hypertable is set, turns the statistics
// table into a TimescaleDB hypertable.
func New(ctx context.Context, connectionString string, hypertable bool, clock clockwork.Clock, logger *zap.SugaredLogger) (*Store, error) {
	logger.Info("connecting to TimescaleDB...")
	db, err := CreateConnection(connectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}

	t := &Store{DB: db, clock: clock, logger: logger}

	if err := t.Ping(ctx, pingTimeout); err != nil {
		t.Close()
		return nil, err
	}

	logger.Info("migrating run tables...")
	if err := db.WithContext(ctx).AutoMigrate(&RunModel{}, &StatisticModel{}); err != nil {
		t.Close()
		return nil, fmt.Errorf("could not migrate run tables: %w", err)
	}

	if hypertable {
		logger.Info("creating TimescaleDB extension...")
		if err := db.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
			t.Close()
			return nil, fmt.Errorf("could not create TimescaleDB extension: %w", err)
		}
		logger.Info("creating hypertable...")
		if err := db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
			t.Close()
			return nil, fmt.Errorf("could not create hypertable: %w", err)
		}
	}

	if err := db.WithContext(ctx).Exec(acceptedViewSQL).Error; err != nil {
		logger.Warnf("could not create accepted_trials view: %v", err)
	}

	return t, nil
}

// SaveRun inserts a run or updates the stored copy.
func (t *Store) SaveRun(ctx context.Context, run *storage.Run) error {
	m := runModel(run)
	err := t.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("could not store run %s: %w", run.ID, err)
	}
	return nil
}

// SaveStatistics replaces the statistics table of a run and variable.
func (t *Store) SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error {
	models, err := statisticModels(runID.String(), variable, t.clock.Now().UTC(), records)
	if err != nil {
		return err
	}

	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ? AND variable = ?", runID.String(), variable).Delete(&StatisticModel{}).Error; err != nil {
			return fmt.Errorf("could not clear statistics of run %s: %w", runID, err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, 500).Error; err != nil {
			return fmt.Errorf("could not store statistics of run %s: %w", runID, err)
		}
		t.logger.Debugf("stored %d %s statistics rows for run %s", len(models), variable, runID)
		return nil
	})
}

// Close closes the underlying connection pool.
func (t *Store) Close() error {
	sqlDB, err := t.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
