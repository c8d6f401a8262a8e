package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// LogExporter writes finished spans to a slog logger at debug level, failed
// spans at warn level
type LogExporter struct {
	log *slog.Logger
}

// NewLogExporter creates an exporter. A nil logger uses slog.Default.
func NewLogExporter(log *slog.Logger) *LogExporter {
	if log == nil {
		log = slog.Default()
	}
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		args := []any{
			"span", span.Name(),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		for _, attr := range span.Attributes() {
			args = append(args, string(attr.Key), attr.Value.Emit())
		}
		for _, ev := range span.Events() {
			args = append(args, "event", ev.Name)
		}

		level := slog.LevelDebug
		if span.Status().Code == codes.Error {
			level = slog.LevelWarn
			args = append(args, "err", span.Status().Description)
		}
		e.log.Log(ctx, level, "trace", args...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// NewProvider builds a tracer provider exporting synchronously to exp.
// Callers shut it down when finished.
func NewProvider(exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
}

// Tracer returns the homing tracer of a provider
func Tracer(provider trace.TracerProvider) trace.Tracer {
	return provider.Tracer("homefw/homing")
}
