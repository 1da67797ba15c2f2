package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/selection"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		rows    selection.Span
		threads int
		want    []selection.Span
	}{
		{
			name:    "single thread",
			rows:    selection.Span{Start: 0, End: 9},
			threads: 1,
			want:    []selection.Span{{Start: 0, End: 9}},
		},
		{
			name:    "even split",
			rows:    selection.Span{Start: 0, End: 7},
			threads: 4,
			want:    []selection.Span{{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5}, {Start: 6, End: 7}},
		},
		{
			name:    "remainder goes to the first chunks",
			rows:    selection.Span{Start: 0, End: 9},
			threads: 3,
			want:    []selection.Span{{Start: 0, End: 3}, {Start: 4, End: 6}, {Start: 7, End: 9}},
		},
		{
			name:    "offset span",
			rows:    selection.Span{Start: 5, End: 11},
			threads: 2,
			want:    []selection.Span{{Start: 5, End: 8}, {Start: 9, End: 11}},
		},
		{
			name:    "more threads than rows",
			rows:    selection.Span{Start: 2, End: 4},
			threads: 10,
			want:    []selection.Span{{Start: 2, End: 2}, {Start: 3, End: 3}, {Start: 4, End: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.rows, tt.threads)
			require.NoError(t, err)
			require.Len(t, chunks, len(tt.want))
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, tt.want[i], c.Rows)
			}
		})
	}
}

func TestSplit_CoversExactly(t *testing.T) {
	for n := 1; n <= 40; n++ {
		for threads := 1; threads <= n+3; threads++ {
			rows := selection.Span{Start: 3, End: 3 + n - 1}
			chunks, err := Split(rows, threads)
			require.NoError(t, err)

			assert.Len(t, chunks, min(threads, n))
			next := rows.Start
			for _, c := range chunks {
				assert.Equal(t, next, c.Rows.Start, "n=%d threads=%d", n, threads)
				assert.GreaterOrEqual(t, c.Rows.Len(), 1)
				assert.LessOrEqual(t, c.Rows.Len()-chunks[len(chunks)-1].Rows.Len(), 1)
				next = c.Rows.End + 1
			}
			assert.Equal(t, rows.End+1, next)
		}
	}
}

func TestSplit_InvalidThreads(t *testing.T) {
	for _, threads := range []int{0, -3} {
		_, err := Split(selection.Span{Start: 0, End: 4}, threads)
		assert.Equal(t, apperrors.ErrTypeInvalidRequest, apperrors.TypeOf(err))
		assert.Equal(t, apperrors.StatusInvalidRequest, apperrors.StatusCode(err))
	}
}
