package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tabstat/internal/errors"
)

func TestOperationSet(t *testing.T) {
	s := NewOperationSet(StdDev, Max, Max)

	assert.True(t, s.Has(Max))
	assert.True(t, s.Has(StdDev))
	assert.False(t, s.Has(Mode))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []Operation{Max, StdDev}, s.Ops())
	assert.Equal(t, "max,stddev", s.String())
	assert.True(t, s.RequiresNumeric())

	var empty OperationSet
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.RequiresNumeric())

	modeOnly := NewOperationSet(Mode)
	assert.False(t, modeOnly.RequiresNumeric())

	s.Add(Operation(42))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Has(Operation(-1)))
}

func TestParseOperation(t *testing.T) {
	tests := map[string]Operation{
		"max":    Max,
		"MIN":    Min,
		" mean ": Mean,
		"avg":    Mean,
		"median": Median,
		"Mode":   Mode,
		"stddev": StdDev,
		"std":    StdDev,
	}
	for in, want := range tests {
		got, err := ParseOperation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOperation("variance")
	assert.Equal(t, apperrors.ErrTypeInvalidRequest, apperrors.TypeOf(err))
}

func TestOperationSet_JSON(t *testing.T) {
	s := NewOperationSet(Median, Mode, Min)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["min","median","mode"]`, string(data))

	var back OperationSet
	require.NoError(t, json.Unmarshal([]byte(`["mode","MIN","median"]`), &back))
	assert.Equal(t, s, back)

	assert.Error(t, json.Unmarshal([]byte(`["bogus"]`), &back))
}

func TestParseOperationSet(t *testing.T) {
	s, err := ParseOperationSet([]string{"max", "mean"})
	require.NoError(t, err)
	assert.Equal(t, NewOperationSet(Max, Mean), s)

	_, err = ParseOperationSet([]string{"max", "nope"})
	assert.Error(t, err)
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Value{"n": NumberValue(2.5), "t": TextValue("red")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2.5,"t":"red"}`, string(data))

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`4`), &v))
	assert.Equal(t, NumberValue(4), v)
	require.NoError(t, json.Unmarshal([]byte(`"x"`), &v))
	assert.Equal(t, TextValue("x"), v)
}
