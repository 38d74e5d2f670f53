// Package ensemble discovers and reads the per-trial output files of a lake model
// calibration ensemble.
package ensemble

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/isohydro/internal/types"
)

// Layout describes where one year of daily values sits in an output file.
type Layout struct {
	Skip   int // lines skipped before the header
	Header int // header lines after the skip
	Rows   int // data rows read after the header
	Column int // 0-based whitespace column holding the value
}

// Output is one trial's simulated series.
type Output struct {
	TrialID int
	File    string
	Values  []float64
}

var trialIDPattern = regexp.MustCompile(`(\d+)\.[^.]+$`)

// TrialIDFromFilename parses the integer immediately before the extension, for example
// 42 from "profile-laketemp42.txt".
func TrialIDFromFilename(path string) (int, error) {
	base := filepath.Base(path)
	m := trialIDPattern.FindStringSubmatch(base)
	if m == nil {
		return 0, types.Malformed(path, 0, "file name carries no trial id")
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, types.Malformed(path, 0, "trial id %q: %v", m[1], err)
	}
	return id, nil
}

// Discover returns the files in dir matching pattern, keyed by trial id. Two files with
// the same id are an error.
func Discover(dir, pattern string) (map[int]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad ensemble pattern %q: %w", pattern, err)
	}

	files := make(map[int]string, len(matches))
	for _, m := range matches {
		id, err := TrialIDFromFilename(m)
		if err != nil {
			return nil, err
		}
		if prev, ok := files[id]; ok {
			return nil, types.Malformed(m, 0, "trial %d already read from %s", id, prev)
		}
		files[id] = m
	}
	return files, nil
}

// SortedIDs returns the keys of a Discover result in ascending order.
func SortedIDs(files map[int]string) []int {
	ids := make([]int, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Read loads one trial's output file.
func Read(path string, id int, layout Layout) (*Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ensemble output: %w", err)
	}
	defer f.Close()

	values, err := Parse(f, path, layout)
	if err != nil {
		return nil, err
	}
	return &Output{TrialID: id, File: path, Values: values}, nil
}

// Parse reads layout.Rows values of layout.Column from r.
func Parse(r io.Reader, name string, layout Layout) ([]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for line < layout.Skip+layout.Header {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", name, err)
			}
			return nil, types.Malformed(name, line, "file ends before line %d", layout.Skip+layout.Header)
		}
		line++
	}

	values := make([]float64, 0, layout.Rows)
	for len(values) < layout.Rows && scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if layout.Column >= len(fields) {
			return nil, types.Malformed(name, line, "no column %d in a row of %d", layout.Column, len(fields))
		}
		v, err := strconv.ParseFloat(fields[layout.Column], 64)
		if err != nil {
			return nil, types.Malformed(name, line, "%q is not a number", fields[layout.Column])
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(values) < layout.Rows {
		return nil, types.Malformed(name, line, "expected %d rows, found %d", layout.Rows, len(values))
	}
	return values, nil
}

// Subsample picks the values at the given 1-based days of year.
func Subsample(values []float64, days []int) ([]float64, error) {
	out := make([]float64, len(days))
	for i, d := range days {
		if d < 1 || d > len(values) {
			return nil, fmt.Errorf("day %d outside the %d simulated days", d, len(values))
		}
		out[i] = values[d-1]
	}
	return out, nil
}
