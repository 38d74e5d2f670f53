// Package forcing reads meteorological forcing and precipitation isotope seasonality
// files and writes the runoff and accumulation exports derived from them.
package forcing

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/isohydro/internal/types"
)

// ReadForcing loads a forcing file: eleven whitespace-delimited columns per row in
// types.ForcingColumns order, no header.
func ReadForcing(path string) ([]types.TimeStep, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open forcing file: %w", err)
	}
	defer f.Close()

	return ParseForcing(f, path)
}

// ParseForcing reads forcing rows from r. name is used in error messages.
func ParseForcing(r io.Reader, name string) ([]types.TimeStep, error) {
	var steps []types.TimeStep

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(types.ForcingColumns) {
			return nil, types.Malformed(name, line, "expected %d columns, found %d", len(types.ForcingColumns), len(fields))
		}

		vals := make([]float64, len(fields))
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, types.Malformed(name, line, "column %s: %q is not a number", types.ForcingColumns[i], s)
			}
			vals[i] = v
		}

		var date [4]int
		for i := range date {
			if vals[i] != math.Trunc(vals[i]) {
				return nil, types.Malformed(name, line, "column %s: %v is not a whole number", types.ForcingColumns[i], vals[i])
			}
			date[i] = int(vals[i])
		}
		if date[1] < 1 || date[1] > 12 {
			return nil, types.Malformed(name, line, "month %d out of range", date[1])
		}

		steps = append(steps, types.TimeStep{
			Year:             date[0],
			Month:            date[1],
			Day:              date[2],
			Hour:             date[3],
			Temperature:      vals[4],
			RelativeHumidity: vals[5],
			Wind:             vals[6],
			Shortwave:        vals[7],
			Longwave:         vals[8],
			Pressure:         vals[9],
			Precipitation:    vals[10],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(steps) == 0 {
		return nil, types.Malformed(name, 0, "no forcing rows")
	}
	return steps, nil
}

// ReadSignatures loads the isotope seasonality table: twelve comma-delimited rows of
// MONTH,d2H,d18O. A leading header row naming MONTH is tolerated.
func ReadSignatures(path string) (types.MonthlySignatures, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.MonthlySignatures{}, fmt.Errorf("failed to open isotope seasonality file: %w", err)
	}
	defer f.Close()

	return ParseSignatures(f, path)
}

// ParseSignatures reads the isotope seasonality table from r.
func ParseSignatures(r io.Reader, name string) (types.MonthlySignatures, error) {
	var (
		sigs types.MonthlySignatures
		seen [12]bool
	)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sigs, fmt.Errorf("failed to read %s: %w", name, err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "MONTH") {
			continue
		}
		if len(rec) != 3 {
			return sigs, types.Malformed(name, line, "expected 3 columns, found %d", len(rec))
		}

		var vals [3]float64
		for i, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return sigs, types.Malformed(name, line, "%q is not a number", s)
			}
			vals[i] = v
		}

		month := int(vals[0])
		if float64(month) != vals[0] || month < 1 || month > 12 {
			return sigs, types.Malformed(name, line, "invalid month %v", vals[0])
		}
		if seen[month-1] {
			return sigs, types.Malformed(name, line, "month %d listed twice", month)
		}
		seen[month-1] = true
		sigs[month-1] = types.NewComposition(vals[1], vals[2])
	}

	for i, ok := range seen {
		if !ok {
			return sigs, types.Malformed(name, 0, "month %d missing", i+1)
		}
	}
	return sigs, nil
}
