// Package observation reads sparse lake temperature observations and reduces them to one
// value per calendar day.
package observation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/isohydro/internal/types"
)

// Options names the columns to read and the layout of the date column.
type Options struct {
	DateColumn  string
	ValueColumn string
	Layout      string
}

// Daily is the mean of all observations taken on one calendar day.
type Daily struct {
	Date      time.Time
	DayOfYear int
	Value     float64
	Count     int
}

// Read loads a whitespace-delimited observation file with a header row.
func Read(path string, opts Options) ([]Daily, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open observation file: %w", err)
	}
	defer f.Close()

	return Parse(f, path, opts)
}

// Parse reads observations from r and groups them by calendar day. Days are returned in
// chronological order with their Gregorian day of year.
func Parse(r io.Reader, name string, opts Options) ([]Daily, error) {
	if opts.DateColumn == "" || opts.ValueColumn == "" || opts.Layout == "" {
		return nil, fmt.Errorf("observation options need a date column, a value column and a date layout")
	}

	scanner := bufio.NewScanner(r)
	line := 0
	dateIdx, valueIdx := -1, -1
	var ncols int

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		ncols = len(fields)
		for i, h := range fields {
			switch h {
			case opts.DateColumn:
				dateIdx = i
			case opts.ValueColumn:
				valueIdx = i
			}
		}
		break
	}
	if dateIdx < 0 || valueIdx < 0 {
		return nil, types.Malformed(name, line, "header must name columns %q and %q", opts.DateColumn, opts.ValueColumn)
	}

	groups := map[time.Time][]float64{}
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != ncols {
			return nil, types.Malformed(name, line, "expected %d columns, found %d", ncols, len(fields))
		}

		ts, err := time.Parse(opts.Layout, fields[dateIdx])
		if err != nil {
			return nil, types.Malformed(name, line, "date %q does not match layout %q", fields[dateIdx], opts.Layout)
		}
		v, err := strconv.ParseFloat(fields[valueIdx], 64)
		if err != nil {
			return nil, types.Malformed(name, line, "%s: %q is not a number", opts.ValueColumn, fields[valueIdx])
		}

		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		groups[day] = append(groups[day], v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(groups) == 0 {
		return nil, types.Malformed(name, 0, "no observations")
	}

	days := make([]Daily, 0, len(groups))
	for d, vals := range groups {
		days = append(days, Daily{
			Date:      d,
			DayOfYear: julian.DayOfYearGregorian(d.Year(), int(d.Month()), d.Day()),
			Value:     stat.Mean(vals, nil),
			Count:     len(vals),
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// WithDays replaces the computed day of year of each observation day, in order. It is used
// when the simulated calendar does not line up with the observation dates.
func WithDays(days []Daily, doy []int) ([]Daily, error) {
	if len(doy) != len(days) {
		return nil, fmt.Errorf("%d observation days configured for %d observed days", len(doy), len(days))
	}
	out := make([]Daily, len(days))
	copy(out, days)
	for i := range out {
		out[i].DayOfYear = doy[i]
	}
	return out, nil
}

// Values returns the daily means in order.
func Values(days []Daily) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = d.Value
	}
	return out
}

// DaysOfYear returns the day of year of each daily value in order.
func DaysOfYear(days []Daily) []int {
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = d.DayOfYear
	}
	return out
}
