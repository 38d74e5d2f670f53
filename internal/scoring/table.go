package scoring

import (
	"errors"
	"math"
	"sort"

	"github.com/chrissnell/isohydro/internal/lhs"
	"github.com/chrissnell/isohydro/internal/types"
)

// Row is one trial of the statistics table. Simulated is false for parameter rows that
// have no ensemble output; their fit is Undefined.
type Row struct {
	Trial     lhs.Trial
	Simulated bool
	File      string
	Fit
}

// Criteria decides which trials are accepted. MaxRSR is ignored when it is not positive.
type Criteria struct {
	MinNSE float64
	MaxRSR float64
}

// Accepts reports whether the row is simulated and meets the criteria. Undefined
// statistics never pass.
func (c Criteria) Accepts(r Row) bool {
	if !r.Simulated || !(r.NSE >= c.MinNSE) {
		return false
	}
	if c.MaxRSR > 0 && !(r.RSR <= c.MaxRSR) {
		return false
	}
	return true
}

// Join attaches each fit to its parameter row by trial id. Every trial appears once in
// the result, in ascending id order. A fit whose id has no parameter row is a
// TrialJoinError; all such failures are returned together alongside the joined rows.
func Join(trials []lhs.Trial, fits []TrialFit) ([]Row, error) {
	byID := make(map[int]int, len(trials))
	rows := make([]Row, len(trials))
	for i, t := range trials {
		rows[i] = Row{Trial: t, Fit: Undefined}
		byID[t.ID] = i
	}

	var errs []error
	for _, f := range fits {
		i, ok := byID[f.TrialID]
		if !ok {
			errs = append(errs, &types.TrialJoinError{File: f.File, TrialID: f.TrialID})
			continue
		}
		rows[i].Simulated = true
		rows[i].File = f.File
		rows[i].Fit = f.Fit
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Trial.ID < rows[b].Trial.ID })
	return rows, errors.Join(errs...)
}

// Accepted returns the rows the criteria accept, in their original order.
func Accepted(rows []Row, c Criteria) []Row {
	var out []Row
	for _, r := range rows {
		if c.Accepts(r) {
			out = append(out, r)
		}
	}
	return out
}

// RankByNSE returns a copy of rows sorted by NSE. Ties keep their input order and rows
// with undefined NSE go last in either direction.
func RankByNSE(rows []Row, descending bool) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].NSE, out[j].NSE
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case descending:
			return a > b
		default:
			return a < b
		}
	})
	return out
}

// TopN returns the n best rows by NSE, best first.
func TopN(rows []Row, n int) []Row {
	ranked := RankByNSE(rows, true)
	if n < 0 {
		n = 0
	}
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
