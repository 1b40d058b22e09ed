// Package telemetry wires OpenTelemetry tracing for pipeline runs.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by the pipeline.
const TracerName = "genrechart/pipeline"

// Config selects the trace exporter.
type Config struct {
	// Exporter is "stdout" or "none" (the default).
	Exporter string

	// Writer receives stdout spans. Defaults to os.Stderr so that spans do not
	// mix with program output.
	Writer io.Writer

	ServiceVersion string
}

// Provider owns the tracer provider. A Provider built with exporter "none"
// hands out no-op tracers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Setup installs a global tracer provider according to cfg.
func Setup(cfg Config) (*Provider, error) {
	switch cfg.Exporter {
	case "", "none":
		return &Provider{tracer: otel.Tracer(TracerName)}, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("telemetry: unsupported trace exporter %q", cfg.Exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "genrechart"),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(TracerName)}, nil
}

// Tracer returns the pipeline tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartStep opens a span for one pipeline step.
func StartStep(ctx context.Context, tr trace.Tracer, job, runID, step string) (context.Context, trace.Span) {
	return tr.Start(ctx, "pipeline."+step,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pipeline.job", job),
			attribute.String("pipeline.run_id", runID),
			attribute.String("pipeline.step", step),
		),
	)
}

// EndStep records rows and the outcome on span and ends it.
func EndStep(span trace.Span, rowsIn, rowsOut int, err error) {
	span.SetAttributes(
		attribute.Int("pipeline.rows_in", rowsIn),
		attribute.Int("pipeline.rows_out", rowsOut),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
