package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

func (m *Manager) createSpanExporter(ctx context.Context) (trace.SpanExporter, error) {
	switch m.config.Exporter.Type {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(m.config.Exporter.Endpoint),
			otlptracegrpc.WithTimeout(m.config.Exporter.Timeout),
		}
		if m.config.Exporter.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(m.config.Exporter.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(m.config.Exporter.Headers))
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(m.writer))
	case "none":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", m.config.Exporter.Type)
	}
}

func (m *Manager) createMetricExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch m.config.Exporter.Type {
	case "otlp":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(m.config.Exporter.Endpoint),
			otlpmetricgrpc.WithTimeout(m.config.Exporter.Timeout),
		}
		if m.config.Exporter.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if len(m.config.Exporter.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(m.config.Exporter.Headers))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "stdout":
		return stdoutmetric.New(stdoutmetric.WithWriter(m.writer))
	default:
		return nil, fmt.Errorf("unsupported metrics exporter type: %s", m.config.Exporter.Type)
	}
}

// noopExporter drops spans; sampling and context propagation still run
type noopExporter struct{}

func (noopExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error { return nil }

func (noopExporter) Shutdown(ctx context.Context) error { return nil }
