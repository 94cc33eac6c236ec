package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Observability owns the OpenTelemetry meter provider (exported through the
// prometheus registry) and the tracer provider for AI execution spans.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	requestCount   otelmetric.Int64Counter
	requestTime    otelmetric.Float64Histogram
}

// New installs the global meter and tracer providers. Finished spans go to
// the zap logger at debug level; extra options such as additional span
// processors are appended.
func New(serviceName string, log *zap.Logger, traceOpts ...sdktrace.TracerProviderOption) *Observability {
	opts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(newLogExporter(log)),
	}, traceOpts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	o := &Observability{tracerProvider: tp, tracer: tp.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", zap.Error(err))
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	o.meterProvider = provider
	o.meter = provider.Meter(serviceName)

	o.requestCount, _ = o.meter.Int64Counter(
		"ai.requests.processed",
		otelmetric.WithDescription("Number of AI requests processed"),
	)
	o.requestTime, _ = o.meter.Float64Histogram(
		"ai.requests.duration",
		otelmetric.WithDescription("AI request processing duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// Tracer returns the tracer for execution spans.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("crm-ai-orchestrator")
	}
	return o.tracer
}

// RecordRequest counts one processed request and its duration.
func (o *Observability) RecordRequest(ctx context.Context, requestType, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("request_type", requestType),
		attribute.String("status", status),
	)
	if o.requestCount != nil {
		o.requestCount.Add(ctx, 1, attrs)
	}
	if o.requestTime != nil {
		o.requestTime.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// Shutdown flushes pending spans and stops both providers.
func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
