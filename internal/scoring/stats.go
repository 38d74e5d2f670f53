// Package scoring rates calibration trials against observations and selects and ranks
// the trials that fit.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Fit holds the goodness-of-fit statistics of one simulated series. Statistics that
// cannot be computed are NaN.
type Fit struct {
	NSE  float64
	RSR  float64
	Bias float64
}

// Undefined is the fit of a trial that was not simulated.
var Undefined = Fit{NSE: math.NaN(), RSR: math.NaN(), Bias: math.NaN()}

// Score compares sim against obs point by point. NSE and RSR are NaN when obs has no
// variance; all three are NaN when the lengths differ or are zero.
func Score(sim, obs []float64) Fit {
	if len(sim) != len(obs) || len(obs) == 0 {
		return Undefined
	}

	mean := stat.Mean(obs, nil)
	var ssTot float64
	for _, o := range obs {
		ssTot += (o - mean) * (o - mean)
	}

	fit := Fit{
		NSE:  math.NaN(),
		RSR:  math.NaN(),
		Bias: mean - stat.Mean(sim, nil),
	}
	if ssTot == 0 {
		return fit
	}

	var ssRes float64
	for i := range obs {
		d := sim[i] - obs[i]
		ssRes += d * d
	}
	fit.NSE = 1 - ssRes/ssTot
	fit.RSR = floats.Distance(sim, obs, 2) / math.Sqrt(ssTot)
	return fit
}

// NSE is the Nash-Sutcliffe efficiency of sim against obs.
func NSE(sim, obs []float64) float64 { return Score(sim, obs).NSE }

// RSR is the root-sum-square error of sim divided by the root-sum-square deviation of obs.
func RSR(sim, obs []float64) float64 { return Score(sim, obs).RSR }

// Bias is mean(obs) - mean(sim).
func Bias(sim, obs []float64) float64 { return Score(sim, obs).Bias }
