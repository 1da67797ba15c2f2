package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/partition"
	"tabstat/internal/selection"
)

// grid is a CellSource over literal rows
type grid [][]string

func (g grid) Cell(row, col int) string { return g[row][col] }

func wholeChunk(rows int) partition.Chunk {
	return partition.Chunk{Index: 0, Rows: selection.Span{Start: 0, End: rows - 1}}
}

func TestAccumulate(t *testing.T) {
	g := grid{
		{"3", "1"},
		{"4", "1.0"},
		{"-2", "5"},
	}
	ops := NewOperationSet(AllOperations()...)

	p, err := Accumulate(context.Background(), g, wholeChunk(3), selection.Span{Start: 0, End: 1}, ops)
	require.NoError(t, err)

	assert.Equal(t, int64(6), p.Cells)
	assert.Equal(t, int64(6), p.Count)
	assert.Equal(t, -2.0, p.Min)
	assert.Equal(t, 5.0, p.Max)
	sum, _ := p.Sum.Float64()
	assert.Equal(t, 12.0, sum)
	squares, _ := p.SumSquares.Float64()
	assert.Equal(t, 9.0+16+4+1+1+25, squares)
	assert.Equal(t, []float64{-2, 1, 1, 3, 4, 5}, p.Sorted)
	assert.Equal(t, 2, p.Frequencies["1"])
}

func TestAccumulate_OnlyRequestedFields(t *testing.T) {
	g := grid{{"1"}, {"2"}}

	p, err := Accumulate(context.Background(), g, wholeChunk(2), selection.Span{}, NewOperationSet(Max))
	require.NoError(t, err)

	assert.Nil(t, p.Sorted)
	assert.Nil(t, p.Frequencies)
	assert.Nil(t, p.Sum)
	assert.Nil(t, p.SumSquares)
	assert.Equal(t, 2.0, p.Max)
}

func TestAccumulate_SumIsExact(t *testing.T) {
	g := grid{{"1e16"}, {"1"}, {"-1e16"}, {"1"}}

	p, err := Accumulate(context.Background(), g, wholeChunk(4), selection.Span{}, NewOperationSet(StdDev))
	require.NoError(t, err)

	sum, _ := p.Sum.Float64()
	assert.Equal(t, 2.0, sum)
	require.NotNil(t, p.SumSquares)
	assert.Equal(t, 1, p.SumSquares.Cmp(p.Sum))
}

func TestAccumulate_NonNumeric(t *testing.T) {
	g := grid{{"1"}, {"N/A"}, {"3"}}

	_, err := Accumulate(context.Background(), g, wholeChunk(3), selection.Span{}, NewOperationSet(Mean))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeNonNumericData, apperrors.TypeOf(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 1, appErr.Context["row"])
}

func TestAccumulate_RejectsNonFinite(t *testing.T) {
	for _, cell := range []string{"NaN", "inf", "-Inf", "1e400", ""} {
		_, err := Accumulate(context.Background(), grid{{cell}}, wholeChunk(1), selection.Span{}, NewOperationSet(Max))
		assert.Equal(t, apperrors.ErrTypeNonNumericData, apperrors.TypeOf(err), "cell %q", cell)
	}
}

func TestAccumulate_ModeAcceptsText(t *testing.T) {
	g := grid{{"red"}, {""}, {"blue"}, {" red "}, {"  "}}

	p, err := Accumulate(context.Background(), g, wholeChunk(5), selection.Span{}, NewOperationSet(Mode))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"red": 2, "blue": 1}, p.Frequencies)
	assert.Equal(t, int64(5), p.Cells)
	assert.Zero(t, p.Count)
}

func TestAccumulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Accumulate(ctx, grid{{"1"}}, wholeChunk(1), selection.Span{}, NewOperationSet(Max))
	assert.Equal(t, apperrors.ErrTypeCancelled, apperrors.TypeOf(err))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1", 1, true},
		{" 2.5 ", 2.5, true},
		{"-1e3", -1000, true},
		{"abc", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestModeKey(t *testing.T) {
	for _, in := range []string{"1", "1.0", "1e0", " 1.000 "} {
		k, ok := modeKey(in)
		require.True(t, ok)
		assert.Equal(t, "1", k, in)
	}

	k, _ := modeKey("-0")
	assert.Equal(t, "0", k)

	_, ok := modeKey("   ")
	assert.False(t, ok)
}
