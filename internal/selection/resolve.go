package selection

import (
	"fmt"

	apperrors "tabstat/internal/errors"
)

// Dimensions is what the resolver needs to know about a table
type Dimensions interface {
	NumRows() int
	NumCols() int
	ColumnIndex(name string) (int, error)
	RowIndex(label string) (int, error)
}

// Span is an inclusive index interval, 0 <= Start <= End
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of indices in the span
func (s Span) Len() int { return s.End - s.Start + 1 }

func (s Span) String() string { return fmt.Sprintf("%d..%d", s.Start, s.End) }

// Selection is the rectangle of cells a request operates on
type Selection struct {
	Rows Span `json:"rows"`
	Cols Span `json:"cols"`
}

// Cells returns the number of cells in the rectangle
func (s Selection) Cells() int { return s.Rows.Len() * s.Cols.Len() }

// Resolve maps row and column specs onto concrete spans of t. It is pure:
// resolving the same specs against the same table always gives the same
// selection.
func Resolve(t Dimensions, rows, cols RangeSpec) (Selection, error) {
	r, err := resolveAxis(rows, t.NumRows(), "row", t.RowIndex)
	if err != nil {
		return Selection{}, err
	}
	c, err := resolveAxis(cols, t.NumCols(), "column", t.ColumnIndex)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Rows: r, Cols: c}, nil
}

func resolveAxis(spec RangeSpec, n int, axis string, lookup func(string) (int, error)) (Span, error) {
	if n == 0 {
		return Span{}, apperrors.NewEmptySelectionError(fmt.Sprintf("table has no %ss", axis))
	}

	span, err := resolveBounds(spec.Start, spec.End, n, axis, lookup)
	if err != nil && spec.split {
		// "total" or "tomato" split into parts that do not exist, but the
		// whole token may itself be a name.
		if _, nameErr := lookup(spec.raw); nameErr == nil {
			return resolveBounds(Name(spec.raw), Full, n, axis, lookup)
		}
	}
	return span, err
}

func resolveBounds(start, end Bound, n int, axis string, lookup func(string) (int, error)) (Span, error) {
	s, err := resolveBound(start, 0, n, axis, lookup)
	if err != nil {
		return Span{}, err
	}
	e, err := resolveBound(end, n-1, n, axis, lookup)
	if err != nil {
		return Span{}, err
	}
	if s > e {
		s, e = e, s
	}
	return Span{Start: s, End: e}, nil
}

func resolveBound(b Bound, full, n int, axis string, lookup func(string) (int, error)) (int, error) {
	switch b.Kind {
	case BoundFull:
		return full, nil
	case BoundIndex:
		if b.Index < 0 || b.Index >= n {
			return 0, apperrors.NewInvalidRangeError(
				fmt.Sprintf("%s index %d out of bounds (have %d)", axis, b.Index, n)).
				WithContext("index", b.Index)
		}
		return b.Index, nil
	default:
		return lookup(b.Name)
	}
}
