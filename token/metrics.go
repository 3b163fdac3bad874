package token

import (
	"context"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments credential issuance and verification.
// A nil *Metrics or an unregistered one records nothing.
type Metrics struct {
	mu         sync.RWMutex
	registered bool

	issued       metric.Int64Counter
	verified     metric.Int64Counter
	verifyTiming metric.Float64Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// RegisterMetrics creates the instruments on meter. Calling it twice is a no-op.
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.issued, err = meter.Int64Counter(
		"auth_tokens_issued_total",
		metric.WithDescription("Total number of credentials issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return err
	}

	m.verified, err = meter.Int64Counter(
		"auth_tokens_verified_total",
		metric.WithDescription("Total number of credential verifications by result"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return err
	}

	m.verifyTiming, err = meter.Float64Histogram(
		"auth_token_verification_duration_seconds",
		metric.WithDescription("Credential verification duration distribution"),
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

func (m *Metrics) RecordIssued(ctx context.Context, kind string) {
	if !m.IsRegistered() {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordVerified(ctx context.Context, result autherr.Kind, d time.Duration) {
	if !m.IsRegistered() {
		return
	}
	label := string(result)
	if result == autherr.KindNone {
		label = "ok"
	}
	attrs := metric.WithAttributes(attribute.String("result", label))
	m.verified.Add(ctx, 1, attrs)
	m.verifyTiming.Record(ctx, d.Seconds(), attrs)
}
