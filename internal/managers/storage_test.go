package managers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/pkg/config"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

type recordingStore struct {
	runs   int
	stats  map[string]int
	closed bool
	err    error
}

func (r *recordingStore) SaveRun(ctx context.Context, run *storage.Run) error {
	r.runs++
	return r.err
}

func (r *recordingStore) SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error {
	if r.stats == nil {
		r.stats = map[string]int{}
	}
	r.stats[variable] += len(records)
	return r.err
}

func (r *recordingStore) Close() error {
	r.closed = true
	return nil
}

func TestNoBackendsDiscardsWrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewStorageManager(context.Background(), config.StorageData{}, clock, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Empty(t, s.Engines)
	assert.NoError(t, s.SaveRun(context.Background(), storage.NewRun(clock, storage.KindRunoff)))
	assert.NoError(t, s.Close())
}

func TestFanOutCollectsFailures(t *testing.T) {
	ok := &recordingStore{}
	bad := &recordingStore{err: errors.New("disk full")}

	s := &StorageManager{}
	s.AddEngine("good", ok)
	s.AddEngine("bad", bad)

	run := storage.NewRun(clockwork.NewFakeClock(), storage.KindCalibrate)
	err := s.SaveRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: disk full")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, bad.runs)

	records := []tableformat.Record{{Trial: 1}, {Trial: 2}}
	require.Error(t, s.SaveStatistics(context.Background(), run.ID, "surface", records))
	assert.Equal(t, 2, ok.stats["surface"])

	require.NoError(t, s.Close())
	assert.True(t, ok.closed)
	assert.True(t, bad.closed)
}

func TestSQLiteBackend(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := config.StorageData{SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "runs.db")}}

	s, err := NewStorageManager(context.Background(), cfg, clock, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, s.Engines, 1)
	assert.Equal(t, "sqlite", s.Engines[0].Name)

	run := storage.NewRun(clock, storage.KindRunoff)
	run.Finish(clock, nil)
	assert.NoError(t, s.SaveRun(context.Background(), run))
}
