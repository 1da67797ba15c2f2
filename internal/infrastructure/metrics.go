package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the instruments recorded by the engine and the HTTP layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal      metric.Int64Counter
	RunDuration    metric.Float64Histogram
	ActiveRuns     metric.Int64UpDownCounter
	CellsProcessed metric.Int64Counter
	ChunkDuration  metric.Float64Histogram
	RunErrors      metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// CreateMetrics registers the tabstat instruments on meter. A nil meter
// yields no-op instruments.
func CreateMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(InstrumentationName)
	}

	var m Metrics
	var err error

	if m.RunsTotal, err = meter.Int64Counter("tabstat_runs_total",
		metric.WithDescription("Statistics runs by outcome")); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram("tabstat_run_duration_seconds",
		metric.WithDescription("End-to-end run duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ActiveRuns, err = meter.Int64UpDownCounter("tabstat_active_runs",
		metric.WithDescription("Runs currently executing")); err != nil {
		return nil, err
	}
	if m.CellsProcessed, err = meter.Int64Counter("tabstat_cells_processed_total",
		metric.WithDescription("Cells folded into accumulators")); err != nil {
		return nil, err
	}
	if m.ChunkDuration, err = meter.Float64Histogram("tabstat_chunk_duration_seconds",
		metric.WithDescription("Per-chunk accumulation time"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.RunErrors, err = meter.Int64Counter("tabstat_run_errors_total",
		metric.WithDescription("Failed runs by error type")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordRun records the outcome of one engine run
func (m *Metrics) RecordRun(ctx context.Context, errType string, threads, chunks int, cells int64, d time.Duration) {
	if m == nil {
		return
	}

	status := "success"
	if errType != "" {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.Int("threads", threads),
	)

	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
	if cells > 0 {
		m.CellsProcessed.Add(ctx, cells)
	}
	if errType != "" {
		m.RunErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.type", errType)))
	}
}

// RecordChunk records the accumulation time of a single chunk
func (m *Metrics) RecordChunk(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ChunkDuration.Record(ctx, d.Seconds())
}

// RunStarted adjusts the active-run gauge; call the returned func when done
func (m *Metrics) RunStarted(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRuns.Add(ctx, 1)
	return func() { m.ActiveRuns.Add(ctx, -1) }
}

// RecordHTTPRequest records one served HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), attrs)
}

// RegisterRuntimeMetrics exports goroutine count and heap usage as
// asynchronous gauges sampled at collection time.
func RegisterRuntimeMetrics(meter metric.Meter, startTime time.Time) error {
	goroutines, err := meter.Int64ObservableGauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return err
	}
	heap, err := meter.Int64ObservableGauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes in use"),
		metric.WithUnit("By"))
	if err != nil {
		return err
	}
	uptime, err := meter.Float64ObservableGauge("system_uptime_seconds",
		metric.WithDescription("Seconds since process start"),
		metric.WithUnit("s"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heap, int64(ms.HeapAlloc))
		o.ObserveFloat64(uptime, time.Since(startTime).Seconds())
		return nil
	}, goroutines, heap, uptime)
	return err
}
