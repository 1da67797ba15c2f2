package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	"tabstat/internal/partition"
	"tabstat/internal/selection"
	"tabstat/internal/stats"
	"tabstat/internal/table"
)

// accumulateFunc folds one chunk; it matches stats.Accumulate
type accumulateFunc func(ctx context.Context, cells stats.CellSource, chunk partition.Chunk, cols selection.Span, ops stats.OperationSet) (*stats.Partial, error)

// Options configures an Engine. The zero value is usable.
type Options struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *infrastructure.Metrics
	// Table controls how files named by Request.Path are parsed.
	Table table.Options
	// MaxThreads caps Request.Threads; zero means no cap.
	MaxThreads int
}

// Engine executes statistics requests. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	logger     *slog.Logger
	tracer     *runTracer
	validator  *validator.Validate
	tableOpts  table.Options
	maxThreads int
	accumulate accumulateFunc
}

// New creates an Engine
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Engine{
		logger:     infrastructure.WithComponent(logger, "engine"),
		tracer:     newRunTracer(opts.Tracer, opts.Metrics),
		validator:  newValidator(),
		tableOpts:  opts.Table,
		maxThreads: opts.MaxThreads,
		accumulate: stats.Accumulate,
	}
}

// Run executes req. The returned Response is never nil; its Status is the
// process status code for the returned error.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	done := e.tracer.metrics.RunStarted(ctx)
	defer done()

	ctx, span := e.tracer.traceRun(ctx, &req)
	defer span.End()

	resp := &Response{Threads: req.Threads}
	err := e.run(ctx, &req, resp)
	resp.Duration = time.Since(start)
	resp.Status = apperrors.StatusCode(err)

	e.tracer.recordCompletion(ctx, span, resp, err)

	if err != nil {
		level := slog.LevelWarn
		if t := apperrors.TypeOf(err); t == apperrors.ErrTypeWorkerFailure || t == "" {
			level = slog.LevelError
		}
		e.logger.Log(ctx, level, "run failed",
			slog.String("path", req.Path),
			slog.String("error_type", string(apperrors.TypeOf(err))),
			slog.Int("status", resp.Status),
			slog.String("error", err.Error()))
		return resp, err
	}

	e.logger.InfoContext(ctx, "run completed",
		slog.String("path", req.Path),
		slog.String("operations", req.Operations.String()),
		slog.String("rows", resp.Selection.Rows.String()),
		slog.String("cols", resp.Selection.Cols.String()),
		slog.Int("chunks", resp.Chunks),
		slog.Int64("cells", resp.Result.Count),
		slog.Duration("duration", resp.Duration))
	return resp, nil
}

func (e *Engine) run(ctx context.Context, req *Request, resp *Response) error {
	if err := e.validate(req); err != nil {
		return err
	}
	if requested := req.Threads; e.clampThreads(req) {
		e.logger.DebugContext(ctx, "thread count clamped",
			slog.Int("requested", requested),
			slog.Int("threads", req.Threads))
	}
	resp.Threads = req.Threads

	t, err := e.load(ctx, req)
	if err != nil {
		return err
	}

	_, span := e.tracer.traceStage(ctx, "resolve")
	sel, err := selection.Resolve(t, req.Rows, req.Cols)
	endStage(span, err)
	if err != nil {
		return err
	}
	resp.Selection = sel

	chunks, err := partition.Split(sel.Rows, req.Threads)
	if err != nil {
		return err
	}
	resp.Chunks = len(chunks)

	e.logger.DebugContext(ctx, "selection resolved",
		slog.String("rows", sel.Rows.String()),
		slog.String("cols", sel.Cols.String()),
		slog.Int("chunks", len(chunks)))

	partials, err := e.accumulateAll(ctx, t, chunks, sel.Cols, req)
	if err != nil {
		return err
	}

	_, span = e.tracer.traceStage(ctx, "reduce")
	res, err := stats.Reduce(req.Operations, partials)
	endStage(span, err)
	if err != nil {
		return err
	}
	resp.Result = res
	return nil
}

func (e *Engine) load(ctx context.Context, req *Request) (*table.Table, error) {
	if req.Table != nil {
		return req.Table, nil
	}

	ctx, span := e.tracer.traceStage(ctx, "load")
	t, err := table.Load(ctx, req.Path, e.tableOpts)
	endStage(span, err)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "table loaded",
		slog.String("path", req.Path),
		slog.Int("rows", t.NumRows()),
		slog.Int("cols", t.NumCols()))
	return t, nil
}

// accumulateAll runs one worker per chunk. Each worker writes only its own
// slot; the first failure cancels the others through the group context.
func (e *Engine) accumulateAll(ctx context.Context, cells stats.CellSource, chunks []partition.Chunk, cols selection.Span, req *Request) ([]*stats.Partial, error) {
	ctx, span := e.tracer.traceStage(ctx, "accumulate")

	partials := make([]*stats.Partial, len(chunks))
	errs := make([]error, len(chunks))
	var finished atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(chunks))

	for i, c := range chunks {
		g.Go(func() (err error) {
			start := time.Now()
			wctx, wspan := e.tracer.traceChunk(gctx, c)

			defer func() {
				if r := recover(); r != nil {
					err = apperrors.NewWorkerFailureError(c.Index, fmt.Errorf("panic: %v", r))
				}
				errs[i] = err
				endStage(wspan, err)

				d := time.Since(start)
				e.tracer.recordChunk(wctx, d)
				if req.Progress != nil {
					req.Progress(ChunkProgress{
						Chunk:    c.Index,
						Rows:     c.Rows,
						Done:     int(finished.Add(1)),
						Total:    len(chunks),
						Duration: d,
						Err:      err,
					})
				}
			}()

			partials[i], err = e.accumulate(wctx, cells, c, cols, req.Operations)
			return err
		})
	}

	_ = g.Wait()

	err := firstError(errs)
	endStage(span, err)
	if err != nil {
		return nil, err
	}
	return partials, nil
}

// firstError returns the failure of the lowest-numbered chunk. Cancellations
// are skipped when a real failure exists, since they are usually caused by it.
func firstError(errs []error) error {
	var cancelled error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if apperrors.TypeOf(err) == "" {
			err = apperrors.NewWorkerFailureError(i, err)
		}
		if apperrors.IsType(err, apperrors.ErrTypeCancelled) {
			if cancelled == nil {
				cancelled = err
			}
			continue
		}
		return err
	}
	return cancelled
}
