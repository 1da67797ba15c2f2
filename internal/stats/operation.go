// Package stats computes Max, Min, Mean, Median, Mode and StdDev over a
// rectangular block of table cells in two phases: independent per-chunk
// partials, then a single-threaded reduction.
package stats

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "tabstat/internal/errors"
)

// Operation is one statistic
type Operation int

const (
	Max Operation = iota
	Min
	Mean
	Median
	Mode
	StdDev

	numOperations
)

var operationNames = [numOperations]string{
	Max:    "max",
	Min:    "min",
	Mean:   "mean",
	Median: "median",
	Mode:   "mode",
	StdDev: "stddev",
}

// AllOperations lists every operation in reporting order
func AllOperations() []Operation {
	return []Operation{Max, Min, Mean, Median, Mode, StdDev}
}

func (o Operation) String() string {
	if o < 0 || o >= numOperations {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// Numeric reports whether the operation needs every cell to be a number
func (o Operation) Numeric() bool {
	return o != Mode
}

// ParseOperation maps a name such as "mean" or "StdDev" to its Operation
func ParseOperation(name string) (Operation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "std", "stdev", "std_dev":
		return StdDev, nil
	case "average", "avg":
		return Mean, nil
	}
	for i, s := range operationNames {
		if s == n {
			return Operation(i), nil
		}
	}
	return 0, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown operation %q", name), nil)
}

// MarshalText implements encoding.TextMarshaler
func (o Operation) MarshalText() ([]byte, error) {
	if o < 0 || o >= numOperations {
		return nil, fmt.Errorf("invalid operation %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Operation) UnmarshalText(b []byte) error {
	op, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// OperationSet is a set of requested operations. The zero value is empty.
type OperationSet struct {
	members [numOperations]bool
}

// NewOperationSet returns a set holding ops
func NewOperationSet(ops ...Operation) OperationSet {
	var s OperationSet
	for _, op := range ops {
		s.Add(op)
	}
	return s
}

// ParseOperationSet builds a set from operation names
func ParseOperationSet(names []string) (OperationSet, error) {
	var s OperationSet
	for _, name := range names {
		op, err := ParseOperation(name)
		if err != nil {
			return OperationSet{}, err
		}
		s.Add(op)
	}
	return s, nil
}

// Add inserts op; out-of-range values are ignored
func (s *OperationSet) Add(op Operation) {
	if op >= 0 && op < numOperations {
		s.members[op] = true
	}
}

// Has reports whether op is in the set
func (s OperationSet) Has(op Operation) bool {
	return op >= 0 && op < numOperations && s.members[op]
}

// Ops returns the members in reporting order
func (s OperationSet) Ops() []Operation {
	ops := make([]Operation, 0, numOperations)
	for _, op := range AllOperations() {
		if s.members[op] {
			ops = append(ops, op)
		}
	}
	return ops
}

// Len returns the number of members
func (s OperationSet) Len() int {
	n := 0
	for _, m := range s.members {
		if m {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no operation was requested
func (s OperationSet) IsEmpty() bool { return s.Len() == 0 }

// RequiresNumeric reports whether any member needs numeric cells
func (s OperationSet) RequiresNumeric() bool {
	for _, op := range s.Ops() {
		if op.Numeric() {
			return true
		}
	}
	return false
}

// Names returns the member names in reporting order
func (s OperationSet) Names() []string {
	ops := s.Ops()
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}

func (s OperationSet) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON encodes the set as a list of names
func (s OperationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names
func (s *OperationSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	parsed, err := ParseOperationSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
