package limiter

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts limiter decisions. A nil or unregistered *Metrics records nothing.
type Metrics struct {
	mu         sync.RWMutex
	registered bool

	decisions metric.Int64Counter
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.decisions, err = meter.Int64Counter(
		"ratelimit_decisions_total",
		metric.WithDescription("Rate limiter decisions by route and result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

func (m *Metrics) IsRegistered() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

func (m *Metrics) record(ctx context.Context, route, result string) {
	if !m.IsRegistered() {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("result", result),
	))
}
