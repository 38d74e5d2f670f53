// Package runoff propagates snow and ice accumulation, runoff generation and the
// isotopic composition of both through a forcing series, one timestep at a time.
package runoff

import (
	"math"

	"github.com/chrissnell/isohydro/internal/phenology"
	"github.com/chrissnell/isohydro/internal/types"
)

// Floor is the smallest runoff amount treated as flow. Anything below it is zero runoff
// and leaves the accumulation untouched.
const Floor = 1e-4

// Params holds the hydrology parameters of one run. Every field is supplied by the
// caller; the engine has no defaults of its own.
type Params struct {
	MeltRatio     float64 // fraction of accumulation melted per active step
	RPRatioSummer float64 // fraction of direct precipitation becoming runoff in summer months
	RPRatioWinter float64 // same, for the remaining months
	RSMRatio      float64 // fraction of snowmelt and glacier melt reaching runoff
	GlacierFlux   float64 // glacier melt per step, 0 when the catchment has no glacier

	ThreshSpring int  // consecutive warm days needed to open the spring melt window
	ThreshFall   int  // consecutive cold days needed to close the fall runoff window
	ThreshAvg    bool // compare the daily pair mean instead of both samples

	FreezingPoint float64
	StepsPerDay   int

	SummerMonths []int // months using RPRatioSummer
	SpringMonths []int // months where runoff needs a ThreshSpring thaw
	ThawMonths   []int // months where runoff needs only an instantaneous thaw
	FallMonths   []int // months with runoff unless a ThreshFall freeze holds
}

// Regime is the state-machine branch taken at a timestep.
type Regime int

const (
	Accumulating Regime = iota
	Melting
)

func (r Regime) String() string {
	if r == Melting {
		return "melting"
	}
	return "accumulating"
}

// State is the accumulated reservoir after a step.
type State struct {
	Mass float64
	Iso  types.Composition
}

// Flow is the runoff leaving the catchment during a step.
type Flow struct {
	Amount float64
	Iso    types.Composition
}

// Result holds the per-step series of a forward pass. The slices are owned by the caller
// once Run returns and are not touched again by the engine.
type Result struct {
	Regime []Regime

	Runoff    []float64
	RunoffIso []types.Composition
	// Substituted marks steps whose runoff composition was undefined and has been
	// replaced by the month's precipitation signature.
	Substituted []bool

	Accumulation    []float64
	AccumulationIso []types.Composition

	Precip []types.Composition
}

// Len returns the number of timesteps in the result.
func (r *Result) Len() int {
	return len(r.Runoff)
}

// MeltingSteps counts the runoff-active timesteps.
func (r *Result) MeltingSteps() int {
	n := 0
	for _, g := range r.Regime {
		if g == Melting {
			n++
		}
	}
	return n
}

// SubstitutedSteps counts the timesteps that fell back to a climatological composition.
func (r *Result) SubstitutedSteps() int {
	n := 0
	for _, s := range r.Substituted {
		if s {
			n++
		}
	}
	return n
}

// Engine runs the accumulation/runoff state machine.
type Engine struct {
	params  Params
	sigs    types.MonthlySignatures
	glacier types.Composition

	summer monthSet
	spring monthSet
	thaw   monthSet
	fall   monthSet
}

// NewEngine builds an engine for the given parameters and precipitation seasonality.
func NewEngine(p Params, sigs types.MonthlySignatures) *Engine {
	return &Engine{
		params:  p,
		sigs:    sigs,
		glacier: sigs.Minimum(),
		summer:  newMonthSet(p.SummerMonths),
		spring:  newMonthSet(p.SpringMonths),
		thaw:    newMonthSet(p.ThawMonths),
		fall:    newMonthSet(p.FallMonths),
	}
}

// Params returns the parameters the engine was built with.
func (e *Engine) Params() Params {
	return e.params
}

// Run performs the forward pass over steps. It is strictly sequential: the state at
// step i depends only on the state at i-1 and the forcing at i.
func (e *Engine) Run(steps []types.TimeStep) *Result {
	n := len(steps)
	res := &Result{
		Regime:          make([]Regime, n),
		Runoff:          make([]float64, n),
		RunoffIso:       make([]types.Composition, n),
		Substituted:     make([]bool, n),
		Accumulation:    make([]float64, n),
		AccumulationIso: make([]types.Composition, n),
		Precip:          make([]types.Composition, n),
	}
	if n == 0 {
		return res
	}

	temps := make([]float64, n)
	for i, s := range steps {
		temps[i] = s.Temperature
	}
	cls := phenology.New(temps, e.params.FreezingPoint, e.params.StepsPerDay, e.params.ThreshAvg)

	prev := State{Iso: types.Undefined}
	for i, s := range steps {
		sig := e.sigs.ForMonth(s.Month)
		res.Precip[i] = sig

		regime := Accumulating
		if e.melting(cls, i, s.Month) {
			regime = Melting
		}

		next, flow := e.Step(prev, s, regime)
		if !flow.Iso.Defined {
			flow.Iso = sig
			res.Substituted[i] = true
		}

		if i == 0 {
			// The series starts from an empty reservoir labelled with the first
			// precipitation signature.
			next = State{Mass: 0, Iso: sig}
		}

		res.Regime[i] = regime
		res.Runoff[i] = flow.Amount
		res.RunoffIso[i] = flow.Iso
		res.Accumulation[i] = next.Mass
		res.AccumulationIso[i] = next.Iso
		prev = next
	}
	return res
}

// Step advances one timestep from prev under the given regime. The returned flow
// composition is undefined when there is no runoff; Run substitutes it afterwards.
func (e *Engine) Step(prev State, s types.TimeStep, regime Regime) (State, Flow) {
	p := e.params
	precip := math.Max(s.Precipitation, 0)
	sig := e.sigs.ForMonth(s.Month)

	if regime == Accumulating {
		next := State{
			Mass: prev.Mass + precip,
			Iso: Mix(
				Component{Mass: prev.Mass, Iso: prev.Iso},
				Component{Mass: precip, Iso: sig},
			),
		}
		return normalize(next), Flow{Iso: types.Undefined}
	}

	direct := Component{Mass: precip * e.rpRatio(s.Month), Iso: sig}
	melt := Component{Mass: prev.Mass * p.MeltRatio * p.RSMRatio, Iso: prev.Iso}
	glacier := Component{Mass: p.GlacierFlux * p.RSMRatio, Iso: e.glacier}

	amount := direct.Mass + melt.Mass + glacier.Mass
	if amount < Floor {
		return normalize(prev), Flow{Iso: types.Undefined}
	}

	next := State{Mass: prev.Mass * (1 - p.MeltRatio), Iso: prev.Iso}
	return normalize(next), Flow{Amount: amount, Iso: Mix(direct, melt, glacier)}
}

func (e *Engine) rpRatio(month int) float64 {
	if e.summer.has(month) {
		return e.params.RPRatioSummer
	}
	return e.params.RPRatioWinter
}

func (e *Engine) melting(cls *phenology.Classifier, i, month int) bool {
	switch {
	case e.spring.has(month) && cls.Thaw(i, e.params.ThreshSpring):
		return true
	case e.thaw.has(month) && cls.Above(i):
		return true
	case e.fall.has(month) && !cls.Freeze(i, e.params.ThreshFall):
		return true
	}
	return false
}

// normalize drops the composition of an empty reservoir.
func normalize(s State) State {
	if !(s.Mass > 0) {
		return State{Mass: math.Max(s.Mass, 0), Iso: types.Undefined}
	}
	return s
}

type monthSet [13]bool

func newMonthSet(months []int) monthSet {
	var m monthSet
	for _, v := range months {
		if v >= 1 && v <= 12 {
			m[v] = true
		}
	}
	return m
}

func (m monthSet) has(month int) bool {
	return month >= 1 && month <= 12 && m[month]
}
