// Package smoothing implements the causal half-Gaussian ("Gaussian tail") weighted
// moving average applied to runoff and its flux-weighted isotope series.
package smoothing

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Filter is a causal weighted moving average. Only the current and past samples carry
// weight; the forward half of the Gaussian kernel is zeroed before normalization.
type Filter struct {
	Period float64
	Sigma  float64

	kernel []float64
}

// New builds a filter for the given period and spread. The period is rounded up to the
// next even number. A non-positive sigma gives the identity filter.
func New(period, sigma float64) *Filter {
	return &Filter{
		Period: period,
		Sigma:  sigma,
		kernel: Kernel(period, sigma),
	}
}

// Kernel returns the normalized taps for offsets -P/2..+P/2, where P is period rounded
// up to an even number. Taps at positive offsets are exactly zero and the rest sum to 1.
func Kernel(period, sigma float64) []float64 {
	half := 0
	if period > 0 {
		half = int(math.Ceil(period / 2))
	}
	w := make([]float64, 2*half+1)

	if sigma <= 0 {
		w[half] = 1
		return w
	}

	norm := sigma * math.Sqrt(2*math.Pi)
	for i := range w {
		x := float64(i - half)
		if x > 0 {
			break
		}
		w[i] = math.Exp(-x*x/(2*sigma*sigma)) / norm
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// Kernel returns a copy of the filter taps.
func (f *Filter) Kernel() []float64 {
	out := make([]float64, len(f.kernel))
	copy(out, f.kernel)
	return out
}

// Apply smooths a and returns a new slice of the same length. Samples before the start
// of the series count as zero and the weights are not renormalized there.
func (f *Filter) Apply(a []float64) []float64 {
	half := len(f.kernel) / 2
	out := make([]float64, len(a))
	for n := range a {
		var sum float64
		for k := 0; k <= half && k <= n; k++ {
			sum += f.kernel[half-k] * a[n-k]
		}
		out[n] = sum
	}
	return out
}

// FluxWeighted smooths iso weighted by runoff: Apply(runoff*iso) / Apply(runoff). Where
// the smoothed runoff is zero the unsmoothed per-step value is kept.
func (f *Filter) FluxWeighted(runoff, iso []float64) []float64 {
	flux := make([]float64, len(runoff))
	for i, r := range runoff {
		if r != 0 {
			flux[i] = r * iso[i]
		}
	}

	num := f.Apply(flux)
	den := f.Apply(runoff)

	out := make([]float64, len(runoff))
	for i := range out {
		if den[i] == 0 {
			out[i] = iso[i]
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}
