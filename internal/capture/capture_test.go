package capture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debugPayload = "10 11 -9 80\n54 5 6 98\n"

func TestParse(t *testing.T) {
	tbl, err := Parse([]byte(debugPayload))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows())
	assert.Equal(t, [][]float64{{10, 54}, {11, 5}, {-9, 6}, {80, 98}}, tbl.Columns)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"ragged", "1 2 3\n4 5\n"},
		{"not_a_number", "1 2\n3 x\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			assert.Error(t, err)
		})
	}

	tbl, err := Parse([]byte("\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Rows())
	assert.Nil(t, Summarize(tbl))
}

func TestSummarize(t *testing.T) {
	tbl, err := Parse([]byte("1 -3\n3 3\n5 -3\n7 3\n"))
	require.NoError(t, err)

	stats := Summarize(tbl)
	require.Len(t, stats, 2)

	assert.Equal(t, 1, stats[0].Column)
	assert.InDelta(t, 4.0, stats[0].Mean, 1e-12)
	assert.InDelta(t, 2.581988897, stats[0].StdDev, 1e-9)
	assert.Equal(t, 1.0, stats[0].Min)
	assert.Equal(t, 7.0, stats[0].Max)

	assert.InDelta(t, 0.0, stats[1].Mean, 1e-12)
	assert.InDelta(t, 3.0, stats[1].RMS, 1e-12)
}

func TestSummarize_SingleRow(t *testing.T) {
	tbl, err := Parse([]byte("4 8\n"))
	require.NoError(t, err)
	stats := Summarize(tbl)
	assert.Equal(t, 0.0, stats[0].StdDev)
	assert.Equal(t, 4.0, stats[0].RMS)
}

func TestPlot(t *testing.T) {
	tbl, err := Parse([]byte(debugPayload))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Plot(tbl, PlotOptions{Title: "data_1_adc"}, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "expected PNG output")

	assert.Error(t, Plot(&Table{}, PlotOptions{}, &buf))
}

func TestGenerateColors(t *testing.T) {
	assert.Len(t, generateColors(4), 4)
	assert.Empty(t, generateColors(0))
}
