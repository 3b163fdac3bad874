package auth

import (
	"context"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the token lifecycle. A nil or unregistered *Metrics records nothing.
type Metrics struct {
	mu         sync.RWMutex
	registered bool

	operations metric.Int64Counter
	duration   metric.Float64Histogram
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
	m.operations, err = meter.Int64Counter(
		"auth_operations_total",
		metric.WithDescription("Total number of login, logout, refresh and invalidate operations by result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	m.duration, err = meter.Float64Histogram(
		"auth_operation_duration_seconds",
		metric.WithDescription("Token lifecycle operation duration distribution"),
		metric.WithUnit("s"),
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

// Record counts one operation outcome
func (m *Metrics) Record(ctx context.Context, op string, err error, d time.Duration) {
	if !m.IsRegistered() {
		return
	}
	result := "ok"
	if err != nil {
		result = string(autherr.KindOf(err))
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}
