package types

import "math"

// TimeStep is a single row of sub-daily meteorological forcing. Temperatures are in
// Kelvin and precipitation in millimetres per step.
type TimeStep struct {
	Year             int
	Month            int
	Day              int
	Hour             int
	Temperature      float64
	RelativeHumidity float64
	Wind             float64
	Shortwave        float64
	Longwave         float64
	Pressure         float64
	Precipitation    float64
}

// ForcingColumns is the column order of forcing files and of the base columns of
// every export.
var ForcingColumns = []string{"YEAR", "MONTH", "DAY", "HOUR", "T2M", "RH", "WIND", "SSRD", "STRD", "SP", "TP"}

// Values returns the row in ForcingColumns order.
func (t TimeStep) Values() []float64 {
	return []float64{
		float64(t.Year), float64(t.Month), float64(t.Day), float64(t.Hour),
		t.Temperature, t.RelativeHumidity, t.Wind, t.Shortwave, t.Longwave, t.Pressure, t.Precipitation,
	}
}

// Composition is a δ²H / δ¹⁸O pair in per-mil. A composition without mass behind it
// is not zero, it is undefined, and consumers must check Defined before doing
// arithmetic with it.
type Composition struct {
	D2H     float64
	D18O    float64
	Defined bool
}

// Undefined is the composition of an empty reservoir.
var Undefined = Composition{D2H: math.NaN(), D18O: math.NaN()}

// NewComposition returns a defined composition.
func NewComposition(d2h, d18o float64) Composition {
	return Composition{D2H: d2h, D18O: d18o, Defined: true}
}

// MonthlySignatures maps month (1-12) to the climatological precipitation composition.
type MonthlySignatures [12]Composition

// ForMonth returns the signature for a 1-based month. Months outside 1-12 are undefined.
func (m MonthlySignatures) ForMonth(month int) Composition {
	if month < 1 || month > 12 {
		return Undefined
	}
	return m[month-1]
}

// Minimum returns the lightest δ²H and lightest δ¹⁸O of the table, taken independently.
// Glacier melt is assigned this composition.
func (m MonthlySignatures) Minimum() Composition {
	lo := Undefined
	for _, c := range m {
		if !c.Defined {
			continue
		}
		if !lo.Defined {
			lo = c
			continue
		}
		lo.D2H = math.Min(lo.D2H, c.D2H)
		lo.D18O = math.Min(lo.D18O, c.D18O)
	}
	return lo
}
