package stats

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	apperrors "tabstat/internal/errors"
)

// Reduce merges the partials of every chunk into the final Result. It must
// only be called once all workers have returned; a nil partial means a worker
// did not deliver and fails the reduction with WORKER_FAILURE.
func Reduce(ops OperationSet, partials []*Partial) (*Result, error) {
	if ops.IsEmpty() {
		return nil, apperrors.NewInvalidRequestError("no operations requested", nil)
	}
	if len(partials) == 0 {
		return nil, apperrors.NewEmptySelectionError("nothing to reduce")
	}
	for i, p := range partials {
		if p == nil {
			return nil, apperrors.NewWorkerFailureError(i, fmt.Errorf("chunk %d produced no partial", i))
		}
	}

	res := &Result{Values: make(map[Operation]Value, ops.Len())}

	var count int64
	for _, p := range partials {
		res.Count += p.Cells
		count += p.Count
	}

	if ops.RequiresNumeric() {
		if count == 0 {
			return nil, apperrors.NewEmptySelectionError("selection holds no values")
		}
		reduceNumeric(ops, partials, count, res)
	}

	if ops.Has(Mode) {
		v, n, err := reduceMode(partials)
		if err != nil {
			return nil, err
		}
		res.Values[Mode] = v
		res.ModeCount = n
	}

	return res, nil
}

func reduceNumeric(ops OperationSet, partials []*Partial, count int64, res *Result) {
	if ops.Has(Max) || ops.Has(Min) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range partials {
			if p.Count == 0 {
				continue
			}
			lo = math.Min(lo, p.Min)
			hi = math.Max(hi, p.Max)
		}
		if ops.Has(Max) {
			res.Values[Max] = NumberValue(hi)
		}
		if ops.Has(Min) {
			res.Values[Min] = NumberValue(lo)
		}
	}

	if ops.Has(Mean) || ops.Has(StdDev) {
		n := new(big.Float).SetInt64(count)
		sum := exactTotal(partials, func(p *Partial) *big.Float { return p.Sum })

		if ops.Has(Mean) {
			mean, _ := new(big.Float).SetPrec(53).Quo(sum, n).Float64()
			res.Values[Mean] = NumberValue(mean)
		}
		if ops.Has(StdDev) {
			squares := exactTotal(partials, func(p *Partial) *big.Float { return p.SumSquares })
			res.Values[StdDev] = NumberValue(populationStdDev(n, sum, squares))
		}
	}

	if ops.Has(Median) {
		seqs := make([][]float64, len(partials))
		for i, p := range partials {
			seqs[i] = p.Sorted
		}
		res.Values[Median] = NumberValue(mergedMedian(seqs, int(count)))
	}
}

// exactTotal adds one exact field across partials
func exactTotal(partials []*Partial, field func(*Partial) *big.Float) *big.Float {
	total := newExact()
	for _, p := range partials {
		if f := field(p); f != nil {
			total.Add(total, f)
		}
	}
	return total
}

// populationStdDev computes sqrt((n*sumSq - sum^2) / n^2). The numerator is
// formed exactly, so the result depends only on the values and not on how
// they were split into chunks.
func populationStdDev(n, sum, squares *big.Float) float64 {
	const wide = 2*exactPrec + 128

	num := new(big.Float).SetPrec(wide).Mul(n, squares)
	num.Sub(num, new(big.Float).SetPrec(wide).Mul(sum, sum))
	if num.Sign() <= 0 {
		return 0
	}

	variance := new(big.Float).SetPrec(wide).Quo(num, new(big.Float).SetPrec(wide).Mul(n, n))
	stddev, _ := new(big.Float).SetPrec(53).Sqrt(variance).Float64()
	return stddev
}

func reduceMode(partials []*Partial) (Value, int, error) {
	freq := make(map[string]int)
	for _, p := range partials {
		for k, c := range p.Frequencies {
			freq[k] += c
		}
	}
	if len(freq) == 0 {
		return Value{}, 0, apperrors.NewEmptySelectionError("selection holds no non-empty cells")
	}

	var best string
	bestCount := -1
	for k, c := range freq {
		if c > bestCount || (c == bestCount && modeLess(k, best)) {
			best, bestCount = k, c
		}
	}

	if v, ok := ParseNumber(best); ok {
		return NumberValue(v), bestCount, nil
	}
	return TextValue(best), bestCount, nil
}

// modeLess orders tie candidates: numbers before text, numbers by value,
// text lexically.
func modeLess(a, b string) bool {
	av, aNum := ParseNumber(a)
	bv, bNum := ParseNumber(b)
	switch {
	case aNum && bNum:
		return av < bv
	case aNum != bNum:
		return aNum
	default:
		return strings.Compare(a, b) < 0
	}
}
