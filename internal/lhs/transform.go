// Package lhs maps Latin Hypercube unit samples onto the physical ranges of the lake and
// runoff model parameters.
package lhs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/isohydro/internal/runoff"
	"github.com/chrissnell/isohydro/internal/types"
)

// ParamSpec is one row of the transform table: scaled = Scale*unit + Offset.
type ParamSpec struct {
	Name   string
	Scale  float64
	Offset float64
}

// Min is the scaled value of a unit sample of 0.
func (p ParamSpec) Min() float64 { return p.Offset }

// Max is the scaled value of a unit sample of 1.
func (p ParamSpec) Max() float64 { return p.Scale + p.Offset }

// Column indices of the hypercube file.
const (
	CDRN = iota
	Eta
	AlbSnow
	AlbSlush
	CSed
	CondSed
	AlbSed
	D18OA
	D2HA
	F
	MeltRatio
	RPRatioSummer
	RPRatioWinter
	RSMRatio
	Period
	Sigma
	ThreshSpring
	ThreshFall

	NumParams
)

var table = [NumParams]ParamSpec{
	CDRN:          {"cdrn", 2e-3, 1e-3},
	Eta:           {"eta", 0.5, 0.2},
	AlbSnow:       {"albsnow", 0.2, 0.7},
	AlbSlush:      {"albslush", 0.3, 0.4},
	CSed:          {"csed", 2e6, 2e6},
	CondSed:       {"condsed", 2.0, 0.5},
	AlbSed:        {"albsed", 0.15, 0.05},
	D18OA:         {"d18Oa", 24, -42.1},
	D2HA:          {"d2ha", 188.9, -322.8},
	F:             {"f", 1.0, 0},
	MeltRatio:     {"melt_ratio", 0.95, 0.05},
	RPRatioSummer: {"rp_ratio_summer", 0.95, 0.05},
	RPRatioWinter: {"rp_ratio_winter", 0.95, 0.05},
	RSMRatio:      {"rsm_ratio", 0.95, 0.05},
	Period:        {"p", 100, 0},
	Sigma:         {"s", 10, 0},
	ThreshSpring:  {"thresh_spring", 20, 0},
	ThreshFall:    {"thresh_fall", 20, 0},
}

// Specs returns a copy of the transform table in hypercube column order.
func Specs() [NumParams]ParamSpec {
	return table
}

// Names returns the parameter names in hypercube column order.
func Names() []string {
	names := make([]string, NumParams)
	for i, p := range table {
		names[i] = p.Name
	}
	return names
}

// Transform scales one row of unit samples. It has no state, so the same input always
// gives bit-identical output.
func Transform(unit [NumParams]float64) [NumParams]float64 {
	var out [NumParams]float64
	for i, p := range table {
		out[i] = p.Scale*unit[i] + p.Offset
	}
	return out
}

// Trial is one calibration run: its id, the raw hypercube row and the scaled values.
type Trial struct {
	ID     int
	Unit   [NumParams]float64
	Scaled [NumParams]float64
}

// NewTrial builds a trial from a row of unit samples.
func NewTrial(id int, unit [NumParams]float64) Trial {
	return Trial{ID: id, Unit: unit, Scaled: Transform(unit)}
}

// Value returns the scaled value of the named parameter.
func (t Trial) Value(name string) (float64, bool) {
	for i, p := range table {
		if p.Name == name {
			return t.Scaled[i], true
		}
	}
	return 0, false
}

// RunoffParams overlays the trial's hydrology columns onto base. Window thresholds are
// rounded half to even.
func (t Trial) RunoffParams(base runoff.Params) runoff.Params {
	p := base
	p.MeltRatio = t.Scaled[MeltRatio]
	p.RPRatioSummer = t.Scaled[RPRatioSummer]
	p.RPRatioWinter = t.Scaled[RPRatioWinter]
	p.RSMRatio = t.Scaled[RSMRatio]
	p.ThreshSpring = int(math.RoundToEven(t.Scaled[ThreshSpring]))
	p.ThreshFall = int(math.RoundToEven(t.Scaled[ThreshFall]))
	return p
}

// Smoothing returns the trial's smoothing period and sigma.
func (t Trial) Smoothing() (period, sigma float64) {
	return t.Scaled[Period], t.Scaled[Sigma]
}

// ReadSamples loads a hypercube file: one trial per row, NumParams whitespace-delimited
// unit values, no header. Trial ids start at 1 in row order.
func ReadSamples(path string) ([]Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	return ParseSamples(f, path)
}

// ParseSamples reads hypercube rows from r.
func ParseSamples(r io.Reader, name string) ([]Trial, error) {
	var trials []Trial

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != NumParams {
			return nil, types.Malformed(name, line, "expected %d columns, found %d", NumParams, len(fields))
		}

		var unit [NumParams]float64
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, types.Malformed(name, line, "column %d (%s): %q is not a number", i, table[i].Name, s)
			}
			unit[i] = v
		}
		trials = append(trials, NewTrial(len(trials)+1, unit))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(trials) == 0 {
		return nil, types.Malformed(name, 0, "no parameter rows")
	}
	return trials, nil
}
