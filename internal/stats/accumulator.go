package stats

import (
	"context"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/partition"
	"tabstat/internal/selection"
)

// CancelCheckRows is how many rows a worker folds between context checks
const CancelCheckRows = 4096

// CellSource gives read access to raw cells by data-row and column index
type CellSource interface {
	Cell(row, col int) string
}

// Partial is one chunk's contribution. Only the fields needed by the
// requested operations are filled in, and a Partial is never modified after
// Accumulate returns it.
type Partial struct {
	Chunk int
	// Cells is the number of cells visited, Count the number of values folded
	// into the numeric moments.
	Cells int64
	Count int64

	// Sum and SumSquares are exact; nothing is rounded until Reduce.
	Sum        *big.Float
	SumSquares *big.Float

	Min float64
	Max float64

	Sorted      []float64
	Frequencies map[string]int
}

// exactPrec holds any sum of float64 values or of their squares without
// rounding. Squares span 2^-2148 to 2^2048 and a 64-bit count adds at most 64
// carry bits.
const exactPrec = 4352

// squarePrec is wide enough for the product of two 53-bit mantissas
const squarePrec = 106

func newExact() *big.Float {
	return new(big.Float).SetPrec(exactPrec)
}

// ParseNumber interprets a cell as a finite float. Surrounding white space is
// ignored; NaN and infinities are rejected.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// modeKey returns the frequency-map key for a cell. Numbers use a canonical
// form so that "1", "1.0" and "1e0" count together.
func modeKey(cell string) (string, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return "", false
	}
	if v, ok := ParseNumber(s); ok {
		if v == 0 {
			v = 0 // fold -0 into 0
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return s, true
}

// Accumulate folds the cells of one chunk (chunk rows x cols) into a Partial.
// A cell that a numeric operation cannot parse fails the chunk with
// NON_NUMERIC_DATA.
func Accumulate(ctx context.Context, cells CellSource, chunk partition.Chunk, cols selection.Span, ops OperationSet) (*Partial, error) {
	p := &Partial{Chunk: chunk.Index}

	numeric := ops.RequiresNumeric()
	wantMoments := ops.Has(Mean) || ops.Has(StdDev)
	wantSquares := ops.Has(StdDev)
	wantSorted := ops.Has(Median)
	wantMode := ops.Has(Mode)

	if wantSorted {
		p.Sorted = make([]float64, 0, chunk.Rows.Len()*cols.Len())
	}
	if wantMode {
		p.Frequencies = make(map[string]int)
	}
	if wantMoments {
		p.Sum = newExact()
	}
	if wantSquares {
		p.SumSquares = newExact()
	}

	var x big.Float
	sq := new(big.Float).SetPrec(squarePrec)
	for row := chunk.Rows.Start; row <= chunk.Rows.End; row++ {
		if (row-chunk.Rows.Start)%CancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.NewCancelledError(err)
			}
		}

		for col := cols.Start; col <= cols.End; col++ {
			cell := cells.Cell(row, col)
			p.Cells++

			if wantMode {
				if key, ok := modeKey(cell); ok {
					p.Frequencies[key]++
				}
			}
			if !numeric {
				continue
			}

			v, ok := ParseNumber(cell)
			if !ok {
				return nil, apperrors.NewNonNumericError(row, col, cell)
			}

			p.Count++
			if p.Count == 1 {
				p.Min, p.Max = v, v
			} else {
				p.Min = math.Min(p.Min, v)
				p.Max = math.Max(p.Max, v)
			}
			if wantMoments {
				x.SetFloat64(v)
				p.Sum.Add(p.Sum, &x)
				if wantSquares {
					p.SumSquares.Add(p.SumSquares, sq.Mul(&x, &x))
				}
			}
			if wantSorted {
				p.Sorted = append(p.Sorted, v)
			}
		}
	}

	if wantSorted {
		slices.Sort(p.Sorted)
	}
	return p, nil
}
