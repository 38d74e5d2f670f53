// Package tableformat writes calibration statistics tables as tab-separated text, JSON
// or MessagePack.
package tableformat

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/isohydro/internal/lhs"
	"github.com/chrissnell/isohydro/internal/scoring"
)

// Format is an encoding for statistics tables.
type Format string

const (
	TSV     Format = "tsv"
	JSON    Format = "json"
	MsgPack Format = "msgpack"
)

// ParseFormat validates a format name. An empty name means TSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return TSV, nil
	case TSV, JSON, MsgPack:
		return f, nil
	}
	return "", fmt.Errorf("unknown table format %q", s)
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == MsgPack {
		return "msgpack"
	}
	return string(f)
}

// Record is one row of a statistics table. Undefined statistics are nil.
type Record struct {
	Trial     int                `json:"trial"`
	Simulated bool               `json:"simulated"`
	NSE       *float64           `json:"nse"`
	RSR       *float64           `json:"rsr"`
	Bias      *float64           `json:"bias"`
	Accepted  bool               `json:"accepted"`
	Params    map[string]float64 `json:"params"`
}

// FromRows converts scored rows into records, marking the ones c accepts.
func FromRows(rows []scoring.Row, c scoring.Criteria) []Record {
	names := lhs.Names()
	out := make([]Record, len(rows))
	for i, r := range rows {
		params := make(map[string]float64, len(names))
		for j, n := range names {
			params[n] = r.Trial.Scaled[j]
		}
		out[i] = Record{
			Trial:     r.Trial.ID,
			Simulated: r.Simulated,
			NSE:       defined(r.NSE),
			RSR:       defined(r.RSR),
			Bias:      defined(r.Bias),
			Accepted:  c.Accepts(r),
			Params:    params,
		}
	}
	return out
}

func defined(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Formatter encodes statistics tables
type Formatter struct{}

// NewFormatter creates a new table formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Write encodes records to w in the given format.
func (f *Formatter) Write(w io.Writer, format Format, records []Record) error {
	switch format {
	case TSV, "":
		return f.writeTSV(w, records)
	case JSON:
		return f.writeJSON(w, records)
	case MsgPack:
		return f.writeMsgPack(w, records)
	}
	return fmt.Errorf("unknown table format %q", format)
}

func (f *Formatter) writeJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func (f *Formatter) writeMsgPack(w io.Writer, records []Record) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(records)
}

func (f *Formatter) writeTSV(w io.Writer, records []Record) error {
	names := lhs.Names()
	bw := bufio.NewWriter(w)

	header := append([]string{"trial", "simulated", "NSE", "RSR", "bias", "accepted"}, names...)
	bw.WriteString(strings.Join(header, "\t"))
	bw.WriteByte('\n')

	fields := make([]string, 0, len(header))
	for _, r := range records {
		fields = append(fields[:0],
			strconv.Itoa(r.Trial),
			strconv.FormatBool(r.Simulated),
			formatStat(r.NSE),
			formatStat(r.RSR),
			formatStat(r.Bias),
			strconv.FormatBool(r.Accepted),
		)
		for _, n := range names {
			fields = append(fields, strconv.FormatFloat(r.Params[n], 'g', -1, 64))
		}
		bw.WriteString(strings.Join(fields, "\t"))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatStat(v *float64) string {
	if v == nil {
		return "nan"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
