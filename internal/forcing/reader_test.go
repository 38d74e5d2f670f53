package forcing

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/isohydro/internal/types"
)

const forcingRows = `1995	1	1	0	260.5	80.1	3.2	0.0	210.4	99800	0.5
1995	1	1	6	262.0	82.0	2.9	15.5	215.0	99750	0.0

1995.0 1 1 12 270.25 78 4.1 120.3 230.1 99700 1.25
`

func TestParseForcing(t *testing.T) {
	steps, err := ParseForcing(strings.NewReader(forcingRows), "met.txt")
	require.NoError(t, err)
	require.Len(t, steps, 3)

	assert.Equal(t, types.TimeStep{
		Year: 1995, Month: 1, Day: 1, Hour: 12,
		Temperature: 270.25, RelativeHumidity: 78, Wind: 4.1, Shortwave: 120.3,
		Longwave: 230.1, Pressure: 99700, Precipitation: 1.25,
	}, steps[2])
	assert.Equal(t, 6, steps[1].Hour)
}

func TestParseForcingMalformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"short row", "1995 1 1 0 260 80 3 0 210 99800\n", 1},
		{"not a number", "1995 1 1 0 260 80 3 0 210 99800 0\n1995 1 1 6 warm 80 3 0 210 99800 0\n", 2},
		{"fractional month", "1995 1.5 1 0 260 80 3 0 210 99800 0\n", 1},
		{"month out of range", "1995 13 1 0 260 80 3 0 210 99800 0\n", 1},
		{"empty file", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForcing(strings.NewReader(tt.input), "met.txt")
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMalformedInput))

			var mi *types.MalformedInputError
			require.True(t, errors.As(err, &mi))
			assert.Equal(t, "met.txt", mi.File)
			assert.Equal(t, tt.wantLine, mi.Line)
		})
	}
}

func seasonality() string {
	var b strings.Builder
	for m := 1; m <= 12; m++ {
		b.WriteString(strings.Join([]string{
			strconv.Itoa(m), strconv.Itoa(-150 + m), strconv.Itoa(-20 + m),
		}, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func TestParseSignatures(t *testing.T) {
	sigs, err := ParseSignatures(strings.NewReader(seasonality()), "iso.csv")
	require.NoError(t, err)

	assert.Equal(t, types.NewComposition(-149, -19), sigs.ForMonth(1))
	assert.Equal(t, types.NewComposition(-138, -8), sigs.ForMonth(12))
	assert.Equal(t, types.NewComposition(-149, -19), sigs.Minimum())
}

func TestParseSignaturesHeader(t *testing.T) {
	sigs, err := ParseSignatures(strings.NewReader("MONTH,d2H,d18O\n"+seasonality()), "iso.csv")
	require.NoError(t, err)
	assert.Equal(t, types.NewComposition(-144, -14), sigs.ForMonth(6))
}

func TestParseSignaturesMalformed(t *testing.T) {
	rows := strings.Split(strings.TrimSpace(seasonality()), "\n")
	withLast := func(last string) string {
		return strings.Join(append(append([]string{}, rows[:11]...), last), "\n")
	}

	tests := []struct {
		name  string
		input string
	}{
		{"missing month", strings.Join(rows[:11], "\n")},
		{"duplicate month", withLast(rows[0])},
		{"extra column", withLast("12,-138,-8,0")},
		{"bad month", withLast("13,-138,-8")},
		{"not a number", withLast("12,heavy,-8")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignatures(strings.NewReader(tt.input), "iso.csv")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrMalformedInput)
			assert.Contains(t, err.Error(), "iso.csv")
		})
	}
}

func TestReadForcingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "met.txt")
	require.NoError(t, os.WriteFile(path, []byte(forcingRows), 0o644))

	steps, err := ReadForcing(path)
	require.NoError(t, err)
	assert.Len(t, steps, 3)

	_, err = ReadForcing(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
