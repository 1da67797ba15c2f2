package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a statistic's result: a number, or for Mode over text cells, the
// winning text.
type Value struct {
	Number  float64
	Text    string
	Numeric bool
}

// NumberValue wraps a float
func NumberValue(f float64) Value {
	return Value{Number: f, Numeric: true}
}

// TextValue wraps a string
func TextValue(s string) Value {
	return Value{Text: s}
}

func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return v.Text
}

// MarshalJSON emits a JSON number for numeric values and a string otherwise
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either a number or a string
func (v *Value) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = TextValue(s)
	return nil
}

// Result holds one value per requested operation. It is built once by Reduce
// and not modified afterwards.
type Result struct {
	Values map[Operation]Value
	// ModeCount is the frequency of the Mode value, zero when Mode was not requested.
	ModeCount int
	// Count is the number of cells in the selection.
	Count int64
}

// Get returns the value computed for op
func (r *Result) Get(op Operation) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.Values[op]
	return v, ok
}

// Ops returns the operations present in the result in reporting order
func (r *Result) Ops() []Operation {
	if r == nil {
		return nil
	}
	ops := make([]Operation, 0, len(r.Values))
	for _, op := range AllOperations() {
		if _, ok := r.Values[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}
