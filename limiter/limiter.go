package limiter

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter applies one token bucket configuration to many keys
type Limiter struct {
	store   Store
	cfg     Config
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Limiter)

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(store Store, cfg Config, opts ...Option) *Limiter {
	cfg.ApplyDefaults()
	l := &Limiter{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// Allow takes a token for key. route labels the metrics only.
func (l *Limiter) Allow(ctx context.Context, route, key string) (Decision, error) {
	allowed, tokens, err := l.store.Take(ctx, l.cfg.KeyPrefix+key, l.now(), l.cfg.Rate, l.cfg.Burst, l.cfg.idleTTL())
	if err != nil {
		l.metrics.record(ctx, route, "error")
		return Decision{}, err
	}

	d := Decision{
		Allowed:   allowed,
		Limit:     l.cfg.Burst,
		Remaining: int64(math.Floor(tokens)),
	}
	if !allowed {
		d.RetryAfter = time.Duration((1 - tokens) / l.cfg.Rate * float64(time.Second))
		l.metrics.record(ctx, route, "denied")
		return d, nil
	}
	l.metrics.record(ctx, route, "allowed")
	return d, nil
}

// Shutdown closes the store
func (l *Limiter) Shutdown() error {
	return l.store.Close()
}
