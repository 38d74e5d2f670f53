package scoring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/isohydro/internal/ensemble"
)

var testLayout = ensemble.Layout{Skip: 1, Header: 1, Rows: 5, Column: 1}

// writeRun writes a five-day run whose value on day d is base*d.
func writeRun(t *testing.T, dir, name string, base float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("spin-up\nday temp\n")
	for d := 1; d <= 5; d++ {
		fmt.Fprintf(&b, "%d %g\n", d, base*float64(d))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestScoreFilesAlignsByTrialID(t *testing.T) {
	dir := t.TempDir()
	// Trial 7 matches the observations; the others are scaled away from them. Names
	// are chosen so lexical order differs from numeric order.
	writeRun(t, dir, "surface10.txt", 3)
	writeRun(t, dir, "surface7.txt", 5)
	writeRun(t, dir, "surface100.txt", 1)
	writeRun(t, dir, "surface9.txt", 5.5)

	files, err := ensemble.Discover(dir, "surface*.txt")
	require.NoError(t, err)

	s, err := NewScorer(zap.NewNop().Sugar(), []float64{5, 10, 15}, []int{1, 2, 3}, testLayout, 3)
	require.NoError(t, err)

	fits, err := s.ScoreFiles(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, fits, 4)

	ids := make([]int, len(fits))
	for i, f := range fits {
		ids[i] = f.TrialID
		assert.Equal(t, files[f.TrialID], f.File)
	}
	assert.Equal(t, []int{7, 9, 10, 100}, ids)

	assert.Equal(t, 1.0, fits[0].NSE)
	assert.Equal(t, 0.0, fits[0].RSR)
	assert.Less(t, fits[1].NSE, 1.0)

	rows, err := Join(trials(100), fits)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rows[6].NSE)
	assert.Equal(t, "surface7.txt", filepath.Base(rows[6].File))

	accepted := Accepted(rows, Criteria{MinNSE: 0.85})
	require.NotEmpty(t, accepted)
	assert.Equal(t, 7, accepted[0].Trial.ID)
}

func TestScoreFilesReadError(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "surface1.txt", 1)
	bad := filepath.Join(dir, "surface2.txt")
	require.NoError(t, os.WriteFile(bad, []byte("spin-up\n"), 0o644))

	files, err := ensemble.Discover(dir, "surface*.txt")
	require.NoError(t, err)

	s, err := NewScorer(zap.NewNop().Sugar(), []float64{1, 2}, []int{1, 2}, testLayout, 2)
	require.NoError(t, err)

	_, err = s.ScoreFiles(context.Background(), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trial 2")
}

func TestScoreFilesDayOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "surface1.txt", 1)
	files, err := ensemble.Discover(dir, "surface*.txt")
	require.NoError(t, err)

	s, err := NewScorer(zap.NewNop().Sugar(), []float64{1, 2}, []int{1, 6}, testLayout, 1)
	require.NoError(t, err)

	_, err = s.ScoreFiles(context.Background(), files)
	assert.ErrorContains(t, err, "day 6")
}

func TestNewScorerValidation(t *testing.T) {
	_, err := NewScorer(zap.NewNop().Sugar(), []float64{1, 2}, []int{1}, testLayout, 1)
	assert.Error(t, err)

	_, err = NewScorer(zap.NewNop().Sugar(), nil, nil, testLayout, 1)
	assert.Error(t, err)

	s, err := NewScorer(zap.NewNop().Sugar(), []float64{1}, []int{1}, testLayout, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Workers)
}
