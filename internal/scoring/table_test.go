package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/isohydro/internal/lhs"
	"github.com/chrissnell/isohydro/internal/types"
)

func trials(n int) []lhs.Trial {
	out := make([]lhs.Trial, n)
	for i := range out {
		var u [lhs.NumParams]float64
		u[lhs.MeltRatio] = float64(i) / float64(n)
		out[i] = lhs.NewTrial(i+1, u)
	}
	return out
}

func TestJoinAlignsByTrialID(t *testing.T) {
	fits := []TrialFit{
		{TrialID: 3, File: "surface3.txt", Fit: Fit{NSE: 0.3}},
		{TrialID: 1, File: "surface1.txt", Fit: Fit{NSE: 0.1}},
	}

	rows, err := Join(trials(4), fits)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	for i, r := range rows {
		assert.Equal(t, i+1, r.Trial.ID)
	}
	assert.Equal(t, 0.1, rows[0].NSE)
	assert.Equal(t, "surface3.txt", rows[2].File)
	assert.Equal(t, 0.3, rows[2].NSE)

	assert.False(t, rows[1].Simulated)
	assert.True(t, math.IsNaN(rows[1].NSE))
	assert.False(t, rows[3].Simulated)
}

func TestJoinReportsEveryOrphan(t *testing.T) {
	fits := []TrialFit{
		{TrialID: 2, File: "surface2.txt"},
		{TrialID: 9, File: "surface9.txt"},
		{TrialID: 12, File: "surface12.txt"},
	}

	rows, err := Join(trials(3), fits)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTrialJoin)
	assert.Contains(t, err.Error(), "surface9.txt")
	assert.Contains(t, err.Error(), "surface12.txt")

	var je *types.TrialJoinError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, 9, je.TrialID)

	require.Len(t, rows, 3)
	assert.True(t, rows[1].Simulated)
}

func TestAccepted(t *testing.T) {
	rows := []Row{
		{Trial: lhs.Trial{ID: 1}, Simulated: true, Fit: Fit{NSE: 0.9, RSR: 0.3}},
		{Trial: lhs.Trial{ID: 2}, Simulated: true, Fit: Fit{NSE: 0.85, RSR: 0.6}},
		{Trial: lhs.Trial{ID: 3}, Simulated: true, Fit: Fit{NSE: 0.84, RSR: 0.1}},
		{Trial: lhs.Trial{ID: 4}, Simulated: false, Fit: Undefined},
		{Trial: lhs.Trial{ID: 5}, Simulated: true, Fit: Fit{NSE: math.NaN(), RSR: math.NaN()}},
	}

	ids := func(rs []Row) []int {
		var out []int
		for _, r := range rs {
			out = append(out, r.Trial.ID)
		}
		return out
	}

	assert.Equal(t, []int{1, 2}, ids(Accepted(rows, Criteria{MinNSE: 0.85})))
	assert.Equal(t, []int{1}, ids(Accepted(rows, Criteria{MinNSE: 0.85, MaxRSR: 0.5})))
	assert.Empty(t, Accepted(rows, Criteria{MinNSE: 0.95}))
}

func TestRankByNSE(t *testing.T) {
	rows := []Row{
		{Trial: lhs.Trial{ID: 1}, Fit: Fit{NSE: 0.2}},
		{Trial: lhs.Trial{ID: 2}, Fit: Fit{NSE: math.NaN()}},
		{Trial: lhs.Trial{ID: 3}, Fit: Fit{NSE: 0.9}},
		{Trial: lhs.Trial{ID: 4}, Fit: Fit{NSE: 0.2}},
		{Trial: lhs.Trial{ID: 5}, Fit: Fit{NSE: -1}},
	}

	order := func(rs []Row) []int {
		out := make([]int, len(rs))
		for i, r := range rs {
			out[i] = r.Trial.ID
		}
		return out
	}

	assert.Equal(t, []int{3, 1, 4, 5, 2}, order(RankByNSE(rows, true)))
	assert.Equal(t, []int{5, 1, 4, 3, 2}, order(RankByNSE(rows, false)))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, order(rows), "input must not be reordered")

	assert.Equal(t, []int{3, 1}, order(TopN(rows, 2)))
	assert.Len(t, TopN(rows, 50), 5)
	assert.Empty(t, TopN(rows, 0))
}
