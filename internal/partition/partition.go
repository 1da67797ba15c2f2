// Package partition splits a row span into contiguous chunks, one per worker.
package partition

import (
	"fmt"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
)

// Chunk is the slice of rows handed to one worker. Every chunk covers the
// full column span of the selection.
type Chunk struct {
	Index int            `json:"index"`
	Rows  selection.Span `json:"rows"`
}

// Split divides rows into min(threads, rows.Len()) contiguous, disjoint,
// non-empty chunks that cover rows exactly. When the length does not divide
// evenly the first len%k chunks carry one extra row.
func Split(rows selection.Span, threads int) ([]Chunk, error) {
	if threads < 1 {
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("thread count must be at least 1, got %d", threads), nil).
			WithContext("threads", threads)
	}

	n := rows.Len()
	if n <= 0 {
		return nil, apperrors.NewEmptySelectionError("no rows to partition")
	}

	k := min(threads, n)
	base, extra := n/k, n%k

	chunks := make([]Chunk, k)
	start := rows.Start
	for i := range chunks {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = Chunk{
			Index: i,
			Rows:  selection.Span{Start: start, End: start + size - 1},
		}
		start += size
	}
	return chunks, nil
}
