package tempmail

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/pro004/tempmail"
)

// otelInstrumentation holds OpenTelemetry instrumentation for the
// tempmail service.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool

	// Session operations
	generateLatency metric.Float64Histogram
	generateCount   metric.Int64Counter
	generateErrors  metric.Int64Counter
	listLatency     metric.Float64Histogram
	listCount       metric.Int64Counter
	listErrors      metric.Int64Counter
	fetchLatency    metric.Float64Histogram
	fetchCount      metric.Int64Counter
	fetchErrors     metric.Int64Counter
	deleteLatency   metric.Float64Histogram
	deleteCount     metric.Int64Counter
	deleteErrors    metric.Int64Counter

	// Sweeper
	sweepRuns    metric.Int64Counter
	sweepRemoved metric.Int64Counter
}

// newOtelInstrumentation creates new OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	// Initialize tracer
	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	// Initialize metrics
	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	var err error

	// Generate metrics
	o.generateLatency, err = meter.Float64Histogram(
		"tempmail.generate.duration",
		metric.WithDescription("Duration of address generation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.generateCount, err = meter.Int64Counter(
		"tempmail.generate.count",
		metric.WithDescription("Number of addresses generated"),
	)
	if err != nil {
		return err
	}

	o.generateErrors, err = meter.Int64Counter(
		"tempmail.generate.errors",
		metric.WithDescription("Number of generation errors"),
	)
	if err != nil {
		return err
	}

	// List metrics
	o.listLatency, err = meter.Float64Histogram(
		"tempmail.list.duration",
		metric.WithDescription("Duration of message listing"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.listCount, err = meter.Int64Counter(
		"tempmail.list.count",
		metric.WithDescription("Number of list operations"),
	)
	if err != nil {
		return err
	}

	o.listErrors, err = meter.Int64Counter(
		"tempmail.list.errors",
		metric.WithDescription("Number of list errors"),
	)
	if err != nil {
		return err
	}

	// Fetch metrics
	o.fetchLatency, err = meter.Float64Histogram(
		"tempmail.fetch.duration",
		metric.WithDescription("Duration of message fetches"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.fetchCount, err = meter.Int64Counter(
		"tempmail.fetch.count",
		metric.WithDescription("Number of fetch operations"),
	)
	if err != nil {
		return err
	}

	o.fetchErrors, err = meter.Int64Counter(
		"tempmail.fetch.errors",
		metric.WithDescription("Number of fetch errors"),
	)
	if err != nil {
		return err
	}

	// Delete metrics
	o.deleteLatency, err = meter.Float64Histogram(
		"tempmail.delete.duration",
		metric.WithDescription("Duration of delete operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	o.deleteCount, err = meter.Int64Counter(
		"tempmail.delete.count",
		metric.WithDescription("Number of delete operations"),
	)
	if err != nil {
		return err
	}

	o.deleteErrors, err = meter.Int64Counter(
		"tempmail.delete.errors",
		metric.WithDescription("Number of delete errors"),
	)
	if err != nil {
		return err
	}

	// Sweeper metrics
	o.sweepRuns, err = meter.Int64Counter(
		"tempmail.sweep.runs",
		metric.WithDescription("Number of sweep passes"),
	)
	if err != nil {
		return err
	}

	o.sweepRemoved, err = meter.Int64Counter(
		"tempmail.sweep.removed",
		metric.WithDescription("Number of expired sessions removed by sweeps"),
	)
	if err != nil {
		return err
	}

	return nil
}

// startSpan starts a new span if tracing is enabled.
// Caller should call the returned func with the operation's error.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// recordGenerate records address-generation metrics.
func (o *otelInstrumentation) recordGenerate(ctx context.Context, duration time.Duration, replaced bool, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("replaced", replaced),
	)

	o.generateLatency.Record(ctx, duration.Seconds(), attrs)
	o.generateCount.Add(ctx, 1, attrs)
	if err != nil {
		o.generateErrors.Add(ctx, 1, attrs)
	}
}

// recordList records message-listing metrics.
func (o *otelInstrumentation) recordList(ctx context.Context, duration time.Duration, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Int("result_count", resultCount),
	)

	o.listLatency.Record(ctx, duration.Seconds(), attrs)
	o.listCount.Add(ctx, 1, attrs)
	if err != nil {
		o.listErrors.Add(ctx, 1, attrs)
	}
}

// recordFetch records message-fetch metrics.
func (o *otelInstrumentation) recordFetch(ctx context.Context, duration time.Duration, fromArchive bool, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("from_archive", fromArchive),
	)

	o.fetchLatency.Record(ctx, duration.Seconds(), attrs)
	o.fetchCount.Add(ctx, 1, attrs)
	if err != nil {
		o.fetchErrors.Add(ctx, 1, attrs)
	}
}

// recordDelete records delete metrics for both single-message and
// whole-account deletes.
func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, target string, err error) {
	if !o.metricsEnabled {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("target", target),
	)

	o.deleteLatency.Record(ctx, duration.Seconds(), attrs)
	o.deleteCount.Add(ctx, 1, attrs)
	if err != nil {
		o.deleteErrors.Add(ctx, 1, attrs)
	}
}

// recordSweep records one sweep pass.
func (o *otelInstrumentation) recordSweep(ctx context.Context, removed int) {
	if !o.metricsEnabled {
		return
	}

	o.sweepRuns.Add(ctx, 1)
	if removed > 0 {
		o.sweepRemoved.Add(ctx, int64(removed))
	}
}
