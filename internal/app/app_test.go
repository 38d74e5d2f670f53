package app

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/isohydro/internal/storage"
	"github.com/chrissnell/isohydro/internal/types"
	"github.com/chrissnell/isohydro/pkg/config"
	"github.com/chrissnell/isohydro/pkg/tableformat"
)

type memStore struct {
	runs  []storage.Run
	stats map[string][]tableformat.Record
}

func (m *memStore) SaveRun(ctx context.Context, run *storage.Run) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) SaveStatistics(ctx context.Context, runID uuid.UUID, variable string, records []tableformat.Record) error {
	if m.stats == nil {
		m.stats = map[string][]tableformat.Record{}
	}
	m.stats[variable] = records
	return nil
}

func (m *memStore) Close() error { return nil }

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func lines(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out [][]string
	s := bufio.NewScanner(f)
	for s.Scan() {
		out = append(out, strings.Split(s.Text(), "\t"))
	}
	require.NoError(t, s.Err())
	return out
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int { return &v }

// runoffFixture writes eight warm June timesteps and a seasonality table.
func runoffFixture(t *testing.T, dir string) *config.RunoffData {
	var forcing strings.Builder
	for i := 0; i < 8; i++ {
		forcing.WriteString("2015 6 1 0 280 80 3 100 250 99800 1\n")
	}
	var iso strings.Builder
	for m := 1; m <= 12; m++ {
		iso.WriteString(strings.Join([]string{strconv.Itoa(m), strconv.Itoa(-150 + m), strconv.Itoa(-20 + m)}, ","))
		iso.WriteString("\n")
	}

	return &config.RunoffData{
		ForcingFile: write(t, dir, "met.txt", forcing.String()),
		IsotopeFile: write(t, dir, "iso.csv", iso.String()),
	}
}

func newTestApp(t *testing.T, cfg *config.ConfigData) (*App, *memStore) {
	t.Helper()
	cfg.ApplyDefaults()
	store := &memStore{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	return New(cfg, zap.NewNop().Sugar(), WithStore(store), WithClock(clock)), store
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"runoff", "Calibrate", "hypercube", "all"} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMode("serve")
	assert.Error(t, err)
}

func TestJobSelection(t *testing.T) {
	a, _ := newTestApp(t, &config.ConfigData{})
	assert.ErrorContains(t, a.Run(context.Background(), ModeAll), "nothing to do")
	assert.ErrorContains(t, a.Run(context.Background(), ModeRunoff), "requires a runoff configuration section")
}

func TestRunoffJob(t *testing.T) {
	dir := t.TempDir()
	rc := runoffFixture(t, dir)
	rc.OutputFile = filepath.Join(dir, "runoff.txt")
	rc.AccumulationFile = filepath.Join(dir, "snowpack.txt")
	rc.MeltRatio = fptr(0.1)
	rc.RPRatioSummer = fptr(0.75)
	rc.RPRatioWinter = fptr(0.25)
	rc.RSMRatio = fptr(0.7)
	rc.Period = fptr(0)
	rc.Sigma = fptr(0)
	rc.ThreshSpring = iptr(0)
	rc.ThreshFall = iptr(0)

	a, store := newTestApp(t, &config.ConfigData{
		Runoff:  rc,
		Metrics: config.MetricsData{Textfile: filepath.Join(dir, "isohydro.prom")},
	})
	require.NoError(t, a.Run(context.Background(), ModeRunoff))

	runoff := lines(t, rc.OutputFile)
	require.Len(t, runoff, 8)
	for _, row := range runoff {
		assert.Len(t, row, 16)
	}
	// Direct precipitation only: 1 * 0.75 at the June signature.
	assert.Equal(t, "0.750", runoff[3][11])
	assert.Equal(t, "-14.000", runoff[3][12])
	assert.Equal(t, "-14.000", runoff[3][13])
	assert.Equal(t, "-144.000", runoff[3][15])

	acc := lines(t, rc.AccumulationFile)
	require.Len(t, acc, 8)
	assert.Len(t, acc[0], 19)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, storage.KindRunoff, run.Kind)
	assert.Equal(t, storage.StatusOK, run.Status)
	assert.Equal(t, 8, run.Timesteps)
	assert.Equal(t, 8, run.MeltingSteps)

	assert.Equal(t, 8.0, testutil.ToFloat64(a.Metrics().Timesteps))
	assert.FileExists(t, filepath.Join(dir, "isohydro.prom"))
}

func TestRunoffJobNeedsParams(t *testing.T) {
	dir := t.TempDir()
	rc := runoffFixture(t, dir)
	rc.OutputFile = filepath.Join(dir, "runoff.txt")

	a, store := newTestApp(t, &config.ConfigData{Runoff: rc})
	err := a.Run(context.Background(), ModeRunoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "melt-ratio")

	require.Len(t, store.runs, 1)
	assert.Equal(t, storage.StatusFailed, store.runs[0].Status)
	assert.NoFileExists(t, rc.OutputFile)
}

func TestRunoffJobNeedsSmoothingPeriod(t *testing.T) {
	dir := t.TempDir()
	rc := runoffFixture(t, dir)
	rc.OutputFile = filepath.Join(dir, "runoff.txt")
	rc.MeltRatio = fptr(0.1)
	rc.RPRatioSummer = fptr(0.75)
	rc.RPRatioWinter = fptr(0.25)
	rc.RSMRatio = fptr(0.7)
	rc.Sigma = fptr(10)
	rc.ThreshSpring = iptr(3)
	rc.ThreshFall = iptr(3)

	a, _ := newTestApp(t, &config.ConfigData{Runoff: rc})
	err := a.Run(context.Background(), ModeRunoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runoff period is required")
	assert.NoFileExists(t, rc.OutputFile)
}

func unitRows(n int) string {
	row := strings.TrimSpace(strings.Repeat("0.5 ", 18))
	return strings.Repeat(row+"\n", n)
}

func TestCalibrateJob(t *testing.T) {
	dir := t.TempDir()
	ens := filepath.Join(dir, "ensemble")
	require.NoError(t, os.Mkdir(ens, 0o755))

	// Trial 1 reproduces the observations, trial 3 reverses them, trial 2 was never
	// simulated and trial 9 has no parameter row.
	write(t, ens, "surface1.txt", "day temp\n1 1\n2 0\n3 2\n4 0\n5 4\n")
	write(t, ens, "surface3.txt", "day temp\n1 4\n2 0\n3 2\n4 0\n5 1\n")
	write(t, ens, "surface9.txt", "day temp\n1 1\n2 0\n3 2\n4 0\n5 4\n")

	out := filepath.Join(dir, "out")
	cfg := &config.ConfigData{
		Calibration: &config.CalibrationData{
			ParameterFile: write(t, dir, "lhs.txt", unitRows(3)),
			EnsembleDir:   ens,
			OutputDir:     out,
			Observations: config.ObservationData{
				File: write(t, dir, "obs.txt", "datetime temp\n01/01/2015 1\n01/03/2015 2\n01/05/2015 4\n"),
			},
			Variables: []config.VariableData{
				{Name: "surface", Pattern: "surface*.txt", Column: iptr(1), Skip: iptr(0), Header: iptr(1), Rows: 5},
			},
		},
	}

	a, store := newTestApp(t, cfg)
	err := a.Run(context.Background(), ModeCalibrate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTrialJoin))

	var joinErr *types.TrialJoinError
	require.True(t, errors.As(err, &joinErr))
	assert.Equal(t, 9, joinErr.TrialID)

	stats := lines(t, filepath.Join(out, "surface-statistics.tsv"))
	require.Len(t, stats, 4)
	assert.Equal(t, []string{"1", "true", "1", "0", "0", "true"}, stats[1][:6])
	assert.Equal(t, []string{"2", "false", "nan", "nan", "nan", "false"}, stats[2][:6])

	accepted := lines(t, filepath.Join(out, "surface-accepted.tsv"))
	require.Len(t, accepted, 2)
	assert.Equal(t, "1", accepted[1][0])

	ranked := lines(t, filepath.Join(out, "surface-ranked.tsv"))
	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"1", "3", "2"}, []string{ranked[1][0], ranked[2][0], ranked[3][0]})

	require.Len(t, store.stats["surface"], 3)
	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, storage.StatusFailed, run.Status)
	assert.Equal(t, 2, run.Trials)
	assert.Equal(t, 1, run.Accepted)

	m := a.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JoinFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TrialsScored.WithLabelValues("surface")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrialsAccepted.WithLabelValues("surface")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BestNSE.WithLabelValues("surface")))
}

func TestHypercubeJob(t *testing.T) {
	dir := t.TempDir()
	rc := runoffFixture(t, dir)
	out := filepath.Join(dir, "trials")

	a, store := newTestApp(t, &config.ConfigData{
		Runoff: rc,
		Hypercube: &config.HypercubeData{
			ParameterFile:       write(t, dir, "lhs.txt", unitRows(2)),
			OutputDir:           out,
			AccumulationPattern: "snowpack-trial%d.txt",
			Trials:              []int{2},
		},
	})
	require.NoError(t, a.Run(context.Background(), ModeAll))

	assert.NoFileExists(t, filepath.Join(out, "met-input-trial1.txt"))
	assert.Len(t, lines(t, filepath.Join(out, "met-input-trial2.txt")), 8)
	assert.Len(t, lines(t, filepath.Join(out, "snowpack-trial2.txt")), 8)

	require.Len(t, store.runs, 1)
	assert.Equal(t, storage.KindHypercube, store.runs[0].Kind)
	assert.Equal(t, 1, store.runs[0].Trials)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics().TrialsGenerated))
}

func TestSelectTrialsUnknownID(t *testing.T) {
	_, err := selectTrials(nil, []int{4})
	assert.ErrorContains(t, err, "trial 4")
}
