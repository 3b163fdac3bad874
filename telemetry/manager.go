// Package telemetry builds the process TracerProvider and MeterProvider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Manager owns the tracer and meter providers. Until Start succeeds with
// telemetry enabled, both providers are no-ops.
type Manager struct {
	config Config
	logger *logger.CtxZapLogger
	writer io.Writer // stdout exporter sink

	mu             sync.RWMutex
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	setGlobal      bool
}

type Option func(*Manager)

// WithWriter redirects the stdout exporters
func WithWriter(w io.Writer) Option {
	return func(m *Manager) { m.writer = w }
}

// WithGlobal installs the providers and the W3C propagator as otel globals on Start
func WithGlobal() Option {
	return func(m *Manager) { m.setGlobal = true }
}

func NewManager(cfg Config, log *logger.CtxZapLogger, opts ...Option) *Manager {
	if log == nil {
		log = logger.GetLogger("telemetry")
	}
	m := &Manager{config: cfg, logger: log, writer: os.Stdout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start builds the providers. It is a no-op when telemetry is disabled.
func (m *Manager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.InfoCtx(ctx, "telemetry disabled, skipping initialization")
		return nil
	}

	res, err := m.createResource(ctx)
	if err != nil {
		return fmt.Errorf("create resource failed: %w", err)
	}

	tp, err := m.createTracerProvider(ctx, res)
	if err != nil {
		return err
	}

	var mp *sdkmetric.MeterProvider
	if m.config.Metrics.Enabled && m.config.Exporter.Type != "none" {
		if mp, err = m.createMeterProvider(ctx, res); err != nil {
			_ = tp.Shutdown(ctx)
			return err
		}
	}

	m.mu.Lock()
	m.tracerProvider = tp
	m.meterProvider = mp
	m.mu.Unlock()

	if m.setGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
		if mp != nil {
			otel.SetMeterProvider(mp)
		}
	}

	m.logger.InfoCtx(ctx, "telemetry started",
		zap.String("service_name", m.config.ServiceName),
		zap.String("exporter", m.config.Exporter.Type),
		zap.Bool("metrics", mp != nil),
	)
	return nil
}

func (m *Manager) createTracerProvider(ctx context.Context, res *resource.Resource) (*trace.TracerProvider, error) {
	exporter, err := m.createSpanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("create span exporter failed: %w", err)
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(m.createSampler()),
	}
	if m.config.Batch.Enabled {
		opts = append(opts, trace.WithBatcher(exporter,
			trace.WithMaxQueueSize(m.config.Batch.MaxQueueSize),
			trace.WithMaxExportBatchSize(m.config.Batch.MaxExportBatchSize),
			trace.WithBatchTimeout(m.config.Batch.ScheduleDelay),
			trace.WithExportTimeout(m.config.Batch.ExportTimeout),
		))
	} else {
		opts = append(opts, trace.WithSyncer(exporter))
	}

	return trace.NewTracerProvider(opts...), nil
}

func (m *Manager) createMeterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := m.createMetricExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("create metrics exporter failed: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(m.config.Metrics.ExportInterval),
			sdkmetric.WithTimeout(m.config.Metrics.ExportTimeout),
		)),
	), nil
}

func (m *Manager) createSampler() trace.Sampler {
	switch m.config.Sampler.Type {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "trace_id_ratio":
		return trace.TraceIDRatioBased(m.config.Sampler.Ratio)
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

// TracerProvider returns the sdk provider, or a no-op one when not started
func (m *Manager) TracerProvider() oteltrace.TracerProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return m.tracerProvider
}

// MeterProvider returns the sdk provider, or a no-op one when metrics are off
func (m *Manager) MeterProvider() metric.MeterProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return m.meterProvider
}

func (m *Manager) Meter(name string) metric.Meter {
	return m.MeterProvider().Meter(name)
}

// MetricsEnabled reports whether meters record into a real pipeline
func (m *Manager) MetricsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meterProvider != nil
}

func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// Shutdown flushes and stops both providers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	tp, mp := m.tracerProvider, m.meterProvider
	m.tracerProvider, m.meterProvider = nil, nil
	m.mu.Unlock()

	var errs []error
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider failed: %w", err))
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider failed: %w", err))
		}
	}
	return errors.Join(errs...)
}
