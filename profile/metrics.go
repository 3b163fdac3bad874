package profile

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache event names recorded under the "event" attribute
const (
	EventHit      = "hit"
	EventMiss     = "miss"
	EventError    = "error"
	EventEviction = "eviction"
)

// Metrics counts profile cache events. A nil or unregistered *Metrics records nothing.
type Metrics struct {
	mu         sync.RWMutex
	registered bool

	events metric.Int64Counter
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
	m.events, err = meter.Int64Counter(
		"profile_cache_events_total",
		metric.WithDescription("Profile cache hits, misses, store errors and evictions"),
		metric.WithUnit("{event}"),
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

func (m *Metrics) record(ctx context.Context, event string) {
	if !m.IsRegistered() {
		return
	}
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
