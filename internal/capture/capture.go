// Package capture reads the ASCII sample tables produced by a read-curve
// command and summarises or plots them.
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Table is a capture split into columns, one per BPM antenna channel.
type Table struct {
	Columns [][]float64
}

// Rows returns the number of samples.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Parse reads whitespace separated numeric rows. Every row must have the
// same number of columns; blank lines are skipped.
func Parse(data []byte) (*Table, error) {
	t := &Table{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if t.Columns == nil {
			t.Columns = make([][]float64, len(fields))
		}
		if len(fields) != len(t.Columns) {
			return nil, fmt.Errorf("line %d: got %d columns, want %d", line, len(fields), len(t.Columns))
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			t.Columns[i] = append(t.Columns[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan capture: %w", err)
	}
	return t, nil
}

// ColumnStats summarises one column of a capture.
type ColumnStats struct {
	Column int     `json:"column"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	RMS    float64 `json:"rms"`
}

// Summarize returns per-column statistics. An empty table yields nil.
func Summarize(t *Table) []ColumnStats {
	if t.Rows() == 0 {
		return nil
	}
	out := make([]ColumnStats, len(t.Columns))
	for i, col := range t.Columns {
		mean, std := stat.MeanStdDev(col, nil)
		if len(col) < 2 {
			std = 0
		}
		out[i] = ColumnStats{
			Column: i + 1,
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(col),
			Max:    floats.Max(col),
			RMS:    floats.Norm(col, 2) / math.Sqrt(float64(len(col))),
		}
	}
	return out
}
