package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabstat/internal/engine"
	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
	"tabstat/internal/stats"
	api "tabstat/pkg/contracts/api/v1"
)

func sampleResponse() *engine.Response {
	return &engine.Response{
		Result: &stats.Result{
			Values: map[stats.Operation]stats.Value{
				stats.Max:  stats.NumberValue(4),
				stats.Mean: stats.NumberValue(2.5),
				stats.Mode: stats.TextValue("red"),
			},
			ModeCount: 3,
			Count:     4,
		},
		Selection: selection.Selection{
			Rows: selection.Span{Start: 0, End: 1},
			Cols: selection.Span{Start: 0, End: 1},
		},
		Chunks:   2,
		Threads:  2,
		Duration: 1500 * time.Microsecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "", expected: FormatText},
		{input: "text", expected: FormatText},
		{input: "JSON", expected: FormatJSON},
		{input: " csv ", expected: FormatCSV},
		{input: "xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0, expected: "0"},
		{name: "positive integer", input: 123, expected: "123"},
		{name: "negative decimal", input: -789.123, expected: "-789.123"},
		{name: "small decimal", input: 0.000001, expected: "0.000001"},
		{name: "million", input: 1e6, expected: "1000000"},
		{name: "tiny", input: 1e-9, expected: "1e-09"},
		{name: "huge", input: 2.5e20, expected: "2.5e+20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleResponse()))

	out := buf.String()
	assert.Contains(t, out, "Statistic")
	assert.Contains(t, out, "max")
	assert.Contains(t, out, "2.5")
	assert.Contains(t, out, "mode_count")
	assert.Contains(t, out, "rows 0..1, cols 0..1: 4 cells in 2 chunks")

	// statistics appear in reporting order
	assert.Less(t, strings.Index(out, "max"), strings.Index(out, "mean"))
	assert.Less(t, strings.Index(out, "mean"), strings.Index(out, "mode"))
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleResponse()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"statistic", "value"},
		{"max", "4"},
		{"mean", "2.5"},
		{"mode", "red"},
		{"mode_count", "3"},
	}, records)
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResponse()))

	var got api.StatsResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.True(t, got.OK())
	assert.Nil(t, got.Error)
	require.NotNil(t, got.Result)
	assert.JSONEq(t, `4`, string(got.Result.Values["max"]))
	assert.JSONEq(t, `2.5`, string(got.Result.Values["mean"]))
	assert.JSONEq(t, `"red"`, string(got.Result.Values["mode"]))
	assert.Equal(t, 3, got.Result.ModeCount)
	assert.Equal(t, int64(4), got.Result.Cells)
	assert.Equal(t, &api.Selection{Rows: api.Span{Start: 0, End: 1}, Cols: api.Span{Start: 0, End: 1}}, got.Selection)
	assert.InDelta(t, 1.5, got.DurationMS, 1e-9)
}

func TestWrite_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, FormatText, nil))
	assert.Error(t, Write(&buf, FormatText, &engine.Response{}))
	assert.Error(t, Write(&buf, Format("xml"), sampleResponse()))
}

func TestToContract_Error(t *testing.T) {
	err := apperrors.NewNonNumericError(3, 1, "N/A")
	resp := &engine.Response{Status: apperrors.StatusNonNumericData, Threads: 4, Chunks: 4}

	got := ToContract(resp, err)

	assert.False(t, got.OK())
	assert.Nil(t, got.Result)
	assert.Equal(t, apperrors.StatusNonNumericData, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "NON_NUMERIC_DATA", got.Error.Type)
	assert.Equal(t, "N/A", got.Error.Context["value"])
	assert.Equal(t, 3, got.Error.Context["row"])
}

func TestToContract_HidesPath(t *testing.T) {
	err := apperrors.NewFileNotFoundError("/secret/data.csv", nil)

	got := ToContract(nil, err)

	assert.Equal(t, apperrors.StatusFileNotFound, got.Status)
	assert.NotContains(t, got.Error.Context, "path")
	assert.Nil(t, got.Selection)
}
