package observation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/isohydro/internal/types"
)

var opts = Options{DateColumn: "datetime", ValueColumn: "temp", Layout: "01/02/2006"}

const obsFile = `site datetime depth temp
imandra 08/03/2015 0.5 14.0
imandra 04/27/2015 0.5 4.0
imandra 08/03/2015 1.0 12.0
imandra 10/23/2015 0.5 6.5

imandra 04/27/2015 1.0 3.0
`

func TestParse(t *testing.T) {
	days, err := Parse(strings.NewReader(obsFile), "obs.txt", opts)
	require.NoError(t, err)
	require.Len(t, days, 3)

	assert.Equal(t, []float64{3.5, 13, 6.5}, Values(days))
	assert.Equal(t, []int{117, 215, 296}, DaysOfYear(days))
	assert.Equal(t, 2, days[0].Count)
	assert.Equal(t, 1, days[2].Count)
}

func TestParseLeapYear(t *testing.T) {
	in := "datetime temp\n03/01/2016 1\n03/01/2015 2\n"
	days, err := Parse(strings.NewReader(in), "obs.txt", opts)
	require.NoError(t, err)
	assert.Equal(t, []int{60, 61}, DaysOfYear(days))
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing value column", "datetime depth\n08/03/2015 1\n"},
		{"bad date", "datetime temp\n2015-08-03 1\n"},
		{"bad value", "datetime temp\n08/03/2015 warm\n"},
		{"ragged row", "datetime temp\n08/03/2015 1 2\n"},
		{"header only", "datetime temp\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), "obs.txt", opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrMalformedInput)
		})
	}
}

func TestParseNeedsOptions(t *testing.T) {
	_, err := Parse(strings.NewReader(obsFile), "obs.txt", Options{})
	assert.Error(t, err)
}

func TestWithDays(t *testing.T) {
	days, err := Parse(strings.NewReader(obsFile), "obs.txt", opts)
	require.NoError(t, err)

	shifted, err := WithDays(days, []int{116, 214, 295})
	require.NoError(t, err)
	assert.Equal(t, []int{116, 214, 295}, DaysOfYear(shifted))
	assert.Equal(t, []int{117, 215, 296}, DaysOfYear(days), "input must not change")

	_, err = WithDays(days, []int{1})
	assert.Error(t, err)
}
