package forcing

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/chrissnell/isohydro/internal/types"
)

// RunoffColumns are appended to the forcing columns in the runoff export.
var RunoffColumns = []string{"RUNOFF", "d18OP", "d18OR", "d2HP", "d2HR"}

// AccumulationColumns are appended to the runoff export columns in the accumulation export.
var AccumulationColumns = []string{"ACC", "d2HACC", "d18OACC"}

// Series is everything the exports need for one run. Runoff and its isotope series are
// the smoothed values; Precip and the accumulation series come straight from the engine.
type Series struct {
	Steps []types.TimeStep

	Runoff []float64
	D18OR  []float64
	D2HR   []float64
	Precip []types.Composition

	Accumulation    []float64
	AccumulationIso []types.Composition
}

func (s *Series) check() error {
	n := len(s.Steps)
	lens := []struct {
		name string
		n    int
	}{
		{"runoff", len(s.Runoff)},
		{"runoff d18O", len(s.D18OR)},
		{"runoff d2H", len(s.D2HR)},
		{"precipitation isotopes", len(s.Precip)},
		{"accumulation", len(s.Accumulation)},
		{"accumulation isotopes", len(s.AccumulationIso)},
	}
	for _, l := range lens {
		if l.n != n {
			return fmt.Errorf("%s series has %d values for %d timesteps", l.name, l.n, n)
		}
	}
	return nil
}

// WriteRunoff writes the forcing columns followed by RunoffColumns, tab-delimited with
// three decimals. header adds a first row of column names.
func WriteRunoff(w io.Writer, s *Series, header bool) error {
	return write(w, s, header, false)
}

// WriteAccumulation writes the runoff export columns followed by AccumulationColumns.
func WriteAccumulation(w io.Writer, s *Series, header bool) error {
	return write(w, s, header, true)
}

// WriteFiles writes the runoff export to runoffPath and, if accPath is not empty, the
// accumulation export to accPath.
func WriteFiles(runoffPath, accPath string, s *Series, header bool) error {
	if err := writeFile(runoffPath, s, header, false); err != nil {
		return err
	}
	if accPath == "" {
		return nil
	}
	return writeFile(accPath, s, header, true)
}

func writeFile(path string, s *Series, header, acc bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f, s, header, acc); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func write(w io.Writer, s *Series, header, acc bool) error {
	if err := s.check(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if header {
		cols := append([]string{}, types.ForcingColumns...)
		cols = append(cols, RunoffColumns...)
		if acc {
			cols = append(cols, AccumulationColumns...)
		}
		writeRow(bw, cols)
	}

	row := make([]string, 0, len(types.ForcingColumns)+len(RunoffColumns)+len(AccumulationColumns))
	for i, step := range s.Steps {
		row = row[:0]
		for _, v := range step.Values() {
			row = append(row, formatValue(v))
		}
		row = append(row,
			formatValue(s.Runoff[i]),
			formatValue(isotope(s.Precip[i], false)),
			formatValue(s.D18OR[i]),
			formatValue(isotope(s.Precip[i], true)),
			formatValue(s.D2HR[i]),
		)
		if acc {
			row = append(row,
				formatValue(s.Accumulation[i]),
				formatValue(isotope(s.AccumulationIso[i], true)),
				formatValue(isotope(s.AccumulationIso[i], false)),
			)
		}
		writeRow(bw, row)
	}
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			bw.WriteByte('\t')
		}
		bw.WriteString(f)
	}
	bw.WriteByte('\n')
}

func isotope(c types.Composition, hydrogen bool) float64 {
	if !c.Defined {
		return math.NaN()
	}
	if hydrogen {
		return c.D2H
	}
	return c.D18O
}

// formatValue renders v with three decimals. Undefined values are written as nan.
func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
