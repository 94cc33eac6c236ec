package observability

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// logExporter writes finished spans to zap.
type logExporter struct {
	log *zap.Logger
}

func newLogExporter(log *zap.Logger) *logExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &logExporter{log: log.Named("trace")}
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		if d := s.Status().Description; d != "" {
			fields = append(fields, zap.String("status_description", d))
		}
		e.log.Debug(s.Name(), fields...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	_ = e.log.Sync()
	return nil
}
