package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/partition"
	"tabstat/internal/selection"
	"tabstat/internal/shared/testutil"
	"tabstat/internal/stats"
	"tabstat/internal/table"
)

func newTestEngine(t *testing.T) (*Engine, *testutil.LogCapture) {
	t.Helper()
	logger, handler := testutil.CaptureLogs(t)
	return New(Options{Logger: logger, MaxThreads: 64}), handler
}

func TestRun_SmallTable(t *testing.T) {
	e, logs := newTestEngine(t)
	path := testutil.WriteTable(t, [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}})

	resp, err := e.Run(context.Background(), Request{
		Path:       path,
		Operations: stats.NewOperationSet(stats.Max, stats.Mean),
		Threads:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, apperrors.StatusOK, resp.Status)
	assert.Equal(t, stats.NumberValue(4), resp.Result.Values[stats.Max])
	assert.Equal(t, stats.NumberValue(2.5), resp.Result.Values[stats.Mean])
	assert.Equal(t, selection.Selection{
		Rows: selection.Span{Start: 0, End: 1},
		Cols: selection.Span{Start: 0, End: 1},
	}, resp.Selection)
	assert.Equal(t, 2, resp.Chunks)
	assert.Positive(t, resp.Duration)

	testutil.ExpectLogged(t, logs, slog.LevelInfo, "run completed")
	testutil.ExpectNoErrors(t, logs)
}

func TestRun_MissingFileStartsNoWorkers(t *testing.T) {
	e, logs := newTestEngine(t)

	var calls atomic.Int32
	e.accumulate = func(ctx context.Context, cells stats.CellSource, chunk partition.Chunk, cols selection.Span, ops stats.OperationSet) (*stats.Partial, error) {
		calls.Add(1)
		return stats.Accumulate(ctx, cells, chunk, cols, ops)
	}

	resp, err := e.Run(context.Background(), Request{
		Path:       filepath.Join(t.TempDir(), "missing.csv"),
		Operations: stats.NewOperationSet(stats.Mean),
		Threads:    4,
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFileNotFound))
	assert.Equal(t, apperrors.StatusFileNotFound, resp.Status)
	assert.Nil(t, resp.Result)
	assert.Zero(t, resp.Chunks)
	assert.Zero(t, calls.Load())

	testutil.ExpectLogged(t, logs, slog.LevelWarn, "run failed")
	testutil.ExpectAttr(t, logs, "error_type", "FILE_NOT_FOUND")
}

func TestRun_Statuses(t *testing.T) {
	rows := [][]string{
		{"name", "x", "y"},
		{"r0", "1", "2"},
		{"r1", "N/A", "4"},
		{"r2", "5", "6"},
	}
	headerOnly := [][]string{{"x", "y"}}

	tests := []struct {
		name   string
		rows   [][]string
		req    Request
		status int
		errTyp apperrors.ErrorType
	}{
		{
			name:   "non-numeric cell with mean",
			rows:   rows,
			req:    Request{Cols: selection.ParseRangeSpec("xtoy"), Operations: stats.NewOperationSet(stats.Mean), Threads: 2},
			status: apperrors.StatusNonNumericData,
			errTyp: apperrors.ErrTypeNonNumericData,
		},
		{
			name:   "unknown header",
			rows:   rows,
			req:    Request{Cols: selection.ParseRangeSpec("nope"), Operations: stats.NewOperationSet(stats.Max), Threads: 1},
			status: apperrors.StatusInvalidRange,
			errTyp: apperrors.ErrTypeInvalidRange,
		},
		{
			name:   "index out of bounds",
			rows:   rows,
			req:    Request{Rows: selection.ParseRangeSpec("0to9"), Operations: stats.NewOperationSet(stats.Max), Threads: 1},
			status: apperrors.StatusInvalidRange,
			errTyp: apperrors.ErrTypeInvalidRange,
		},
		{
			name:   "header only",
			rows:   headerOnly,
			req:    Request{Operations: stats.NewOperationSet(stats.Max), Threads: 1},
			status: apperrors.StatusEmptySelection,
			errTyp: apperrors.ErrTypeEmptySelection,
		},
		{
			name:   "zero threads",
			rows:   rows,
			req:    Request{Operations: stats.NewOperationSet(stats.Max), Threads: 0},
			status: apperrors.StatusInvalidRequest,
			errTyp: apperrors.ErrTypeInvalidRequest,
		},
		{
			name:   "no operations",
			rows:   rows,
			req:    Request{Threads: 1},
			status: apperrors.StatusInvalidRequest,
			errTyp: apperrors.ErrTypeInvalidRequest,
		},
		{
			name:   "mode accepts text",
			rows:   rows,
			req:    Request{Cols: selection.ParseRangeSpec("x"), Operations: stats.NewOperationSet(stats.Mode), Threads: 3},
			status: apperrors.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			tt.req.Path = testutil.WriteTable(t, tt.rows)

			resp, err := e.Run(context.Background(), tt.req)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)
			if tt.errTyp == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.errTyp, apperrors.TypeOf(err))
		})
	}
}

func TestRun_MissingPath(t *testing.T) {
	e, _ := newTestEngine(t)

	resp, err := e.Run(context.Background(), Request{Operations: stats.NewOperationSet(stats.Max), Threads: 1})
	assert.Equal(t, apperrors.StatusInvalidRequest, resp.Status)
	assert.ErrorContains(t, err, "a file path or table is required")
}

func TestRun_ReversedRange(t *testing.T) {
	e, _ := newTestEngine(t)
	path := testutil.WriteTable(t, [][]string{
		{"v"}, {"10"}, {"20"}, {"30"}, {"40"}, {"50"},
	})

	resp, err := e.Run(context.Background(), Request{
		Path:       path,
		Rows:       selection.ParseRangeSpec("1to0"),
		Operations: stats.NewOperationSet(stats.Max, stats.Min),
		Threads:    4,
	})
	require.NoError(t, err)

	assert.Equal(t, selection.Span{Start: 0, End: 1}, resp.Selection.Rows)
	assert.Equal(t, 20.0, resp.Result.Values[stats.Max].Number)
	assert.Equal(t, 10.0, resp.Result.Values[stats.Min].Number)
}

func TestRun_ThreadsClampedToMax(t *testing.T) {
	e, logs := newTestEngine(t)
	path := testutil.WriteTable(t, [][]string{{"a"}, {"1"}, {"2"}, {"3"}})

	resp, err := e.Run(context.Background(), Request{
		Path:       path,
		Operations: stats.NewOperationSet(stats.Max),
		Threads:    300,
	})
	require.NoError(t, err)

	assert.Equal(t, apperrors.StatusOK, resp.Status)
	assert.Equal(t, 64, resp.Threads)
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, 3.0, resp.Result.Values[stats.Max].Number)
	testutil.ExpectAttr(t, logs, "requested", int64(300))
}

func TestRun_ThreadCountInvariance(t *testing.T) {
	e, _ := newTestEngine(t)
	rows := 500
	grid, _ := testutil.NumericGrid(rows, 3, 11)
	tbl, err := table.New(grid[0], grid[1:])
	require.NoError(t, err)

	ops := stats.NewOperationSet(stats.AllOperations()...)
	base, err := e.Run(context.Background(), Request{Table: tbl, Operations: ops, Threads: 1})
	require.NoError(t, err)

	for _, threads := range []int{2, 7, rows, rows + 10} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			e := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
			resp, err := e.Run(context.Background(), Request{Table: tbl, Operations: ops, Threads: threads})
			require.NoError(t, err)

			assert.Equal(t, min(threads, rows), resp.Chunks)
			for _, op := range stats.AllOperations() {
				assert.Equal(t, base.Result.Values[op], resp.Result.Values[op], op.String())
			}
		})
	}
}

func TestRun_Precision(t *testing.T) {
	e, _ := newTestEngine(t)
	grid, values := testutil.NumericGrid(5000, 2, 5)
	path := testutil.WriteTable(t, grid)

	var n, sum float64
	for _, col := range values {
		for _, v := range col {
			sum += v
			n++
		}
	}
	mean := sum / n
	var ss float64
	for _, col := range values {
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
	}
	stddev := math.Sqrt(ss / n)

	resp, err := e.Run(context.Background(), Request{
		Path:       path,
		Operations: stats.NewOperationSet(stats.Mean, stats.StdDev),
		Threads:    8,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), resp.Result.Count)
	assert.InEpsilon(t, mean, resp.Result.Values[stats.Mean].Number, 1e-9)
	assert.InEpsilon(t, stddev, resp.Result.Values[stats.StdDev].Number, 1e-9)
}

func TestRun_WorkerPanic(t *testing.T) {
	e, logs := newTestEngine(t)
	e.accumulate = func(ctx context.Context, cells stats.CellSource, chunk partition.Chunk, cols selection.Span, ops stats.OperationSet) (*stats.Partial, error) {
		if chunk.Index == 1 {
			panic("boom")
		}
		return stats.Accumulate(ctx, cells, chunk, cols, ops)
	}
	path := testutil.WriteTable(t, [][]string{{"v"}, {"1"}, {"2"}, {"3"}})

	resp, err := e.Run(context.Background(), Request{Path: path, Operations: stats.NewOperationSet(stats.Max), Threads: 3})

	assert.Equal(t, apperrors.StatusWorkerFailure, resp.Status)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeWorkerFailure))
	assert.ErrorContains(t, err, "boom")
	testutil.ExpectLogged(t, logs, slog.LevelError, "run failed")
}

func TestRun_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t)
	tbl, err := table.New([]string{"v"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := e.Run(ctx, Request{Table: tbl, Operations: stats.NewOperationSet(stats.Mean), Threads: 2})
	assert.Equal(t, apperrors.StatusCancelled, resp.Status)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRun_Progress(t *testing.T) {
	e, _ := newTestEngine(t)
	grid, _ := testutil.NumericGrid(40, 1, 1)
	path := testutil.WriteTable(t, grid)

	var mu sync.Mutex
	var events []ChunkProgress
	resp, err := e.Run(context.Background(), Request{
		Path:       path,
		Operations: stats.NewOperationSet(stats.Median),
		Threads:    4,
		Progress: func(p ChunkProgress) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, p)
		},
	})
	require.NoError(t, err)

	require.Len(t, events, resp.Chunks)
	seen := make(map[int]bool)
	done := make([]int, 0, len(events))
	for _, ev := range events {
		assert.Equal(t, 4, ev.Total)
		assert.NoError(t, ev.Err)
		seen[ev.Chunk] = true
		done = append(done, ev.Done)
	}
	assert.Len(t, seen, 4)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, done)
}

func TestFirstError(t *testing.T) {
	cancelled := apperrors.NewCancelledError(context.Canceled)
	nonNumeric := apperrors.NewNonNumericError(3, 0, "x")
	badRange := apperrors.NewInvalidRangeError("bad")

	tests := []struct {
		name string
		errs []error
		want apperrors.ErrorType
	}{
		{"none", []error{nil, nil}, ""},
		{"chunk order", []error{nil, nonNumeric, badRange}, apperrors.ErrTypeNonNumericData},
		{"cancellations skipped", []error{cancelled, nil, badRange}, apperrors.ErrTypeInvalidRange},
		{"only cancellations", []error{nil, cancelled}, apperrors.ErrTypeCancelled},
		{"plain error wrapped", []error{errors.New("disk on fire")}, apperrors.ErrTypeWorkerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.TypeOf(firstError(tt.errs)))
		})
	}
}

func BenchmarkRun(b *testing.B) {
	grid, _ := testutil.NumericGrid(100000, 4, 1)
	tbl, err := table.New(grid[0], grid[1:])
	require.NoError(b, err)

	e := New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ops := stats.NewOperationSet(stats.AllOperations()...)

	for _, threads := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("threads=%d", threads), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := e.Run(context.Background(), Request{Table: tbl, Operations: ops, Threads: threads}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
