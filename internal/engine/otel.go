package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "tabstat/internal/errors"
	"tabstat/internal/infrastructure"
	"tabstat/internal/partition"
)

const (
	TracerName = "tabstat.engine"
)

// runTracer provides OpenTelemetry instrumentation for engine runs
type runTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
}

func newRunTracer(tracer trace.Tracer, metrics *infrastructure.Metrics) *runTracer {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &runTracer{tracer: tracer, metrics: metrics}
}

// traceRun creates a span for the entire run
func (rt *runTracer) traceRun(ctx context.Context, req *Request) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "engine.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.path", req.Path),
			attribute.String("run.rows", req.Rows.String()),
			attribute.String("run.cols", req.Cols.String()),
			attribute.StringSlice("run.operations", req.Operations.Names()),
			attribute.Int("run.threads", req.Threads),
		),
	)
}

// traceStage creates a child span for one pipeline stage
func (rt *runTracer) traceStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, fmt.Sprintf("engine.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// traceChunk creates a span for one worker
func (rt *runTracer) traceChunk(ctx context.Context, c partition.Chunk) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "engine.chunk",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("chunk.index", c.Index),
			attribute.Int("chunk.row_start", c.Rows.Start),
			attribute.Int("chunk.row_end", c.Rows.End),
		),
	)
}

// endStage closes a stage span, recording err on it
func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordCompletion records run metrics and closes out the run span
func (rt *runTracer) recordCompletion(ctx context.Context, span trace.Span, resp *Response, err error) {
	errType := string(apperrors.TypeOf(err))
	cells := int64(0)
	if resp.Result != nil {
		cells = resp.Result.Count
	}

	span.SetAttributes(
		attribute.Int("run.status", resp.Status),
		attribute.Int("run.chunks", resp.Chunks),
		attribute.Int64("run.cells", cells),
		attribute.Float64("run.duration_seconds", resp.Duration.Seconds()),
	)

	rt.metrics.RecordRun(ctx, errType, resp.Threads, resp.Chunks, cells, resp.Duration)

	if err != nil {
		infrastructure.RecordError(ctx, err, trace.WithAttributes(attribute.String("error.type", errType)))
		return
	}
	span.SetStatus(codes.Ok, "run completed")
}

func (rt *runTracer) recordChunk(ctx context.Context, d time.Duration) {
	rt.metrics.RecordChunk(ctx, d)
}
