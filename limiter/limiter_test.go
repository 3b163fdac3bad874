package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func stores(t *testing.T) map[string]Store {
	mem := NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		StoreMemory: mem,
		StoreRedis:  NewRedisStore(client),
	}
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			l := New(store, Config{Enabled: true, Store: name, Rate: 1, Burst: 3}, WithClock(clock.Now))
			ctx := context.Background()

			for i := int64(2); i >= 0; i-- {
				d, err := l.Allow(ctx, "/api/auth/login", "10.0.0.1")
				require.NoError(t, err)
				assert.True(t, d.Allowed)
				assert.Equal(t, i, d.Remaining)
				assert.Equal(t, int64(3), d.Limit)
			}

			d, err := l.Allow(ctx, "/api/auth/login", "10.0.0.1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, time.Second, d.RetryAfter)

			// other clients have their own bucket
			d, err = l.Allow(ctx, "/api/auth/login", "10.0.0.2")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			clock.Advance(1500 * time.Millisecond)
			d, err = l.Allow(ctx, "/api/auth/login", "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, int64(0), d.Remaining)

			d, err = l.Allow(ctx, "/api/auth/login", "10.0.0.1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 500*time.Millisecond, d.RetryAfter)
		})
	}
}

func TestLimiter_RefillCapsAtBurst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			l := New(store, Config{Enabled: true, Store: name, Rate: 2, Burst: 2}, WithClock(clock.Now))
			ctx := context.Background()

			_, err := l.Allow(ctx, "r", "k")
			require.NoError(t, err)
			clock.Advance(time.Hour)

			d, err := l.Allow(ctx, "r", "k")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, int64(1), d.Remaining)
		})
	}
}

func TestRedisStore_KeyExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := New(NewRedisStore(client), Config{Enabled: true, Store: StoreRedis, Rate: 1, Burst: 5})
	_, err := l.Allow(context.Background(), "r", "1.2.3.4")
	require.NoError(t, err)

	require.True(t, mr.Exists("rateLimit:1.2.3.4"))
	assert.Equal(t, 5*time.Second, mr.TTL("rateLimit:1.2.3.4"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := New(NewRedisStore(client), Config{Enabled: true, Store: StoreRedis})
	_, err := l.Allow(context.Background(), "r", "k")
	assert.Error(t, err)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Take(ctx, "k", time.Now(), 1, 1, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, 0.2, cfg.Rate)
	assert.Equal(t, int64(10), cfg.Burst)
	assert.Equal(t, []string{"/api/auth/login", "/api/auth/refresh"}, cfg.Paths)
	assert.Equal(t, 50*time.Second, cfg.idleTTL())

	assert.NoError(t, cfg.Validate())
	cfg.Enabled = true
	assert.Error(t, cfg.Validate())
	cfg.Store = StoreMemory
	assert.NoError(t, cfg.Validate())
	cfg.Rate = -1
	assert.Error(t, cfg.Validate())
}

func TestMetrics_RecordsDecisions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("limiter")))
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("limiter")))

	store := NewMemoryStore()
	defer store.Close()
	l := New(store, Config{Enabled: true, Store: StoreMemory, Rate: 1, Burst: 1}, WithMetrics(metrics))

	ctx := context.Background()
	_, _ = l.Allow(ctx, "/api/auth/login", "k")
	_, _ = l.Allow(ctx, "/api/auth/login", "k")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	results := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "ratelimit_decisions_total" {
				continue
			}
			data, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range data.DataPoints {
				result, _ := dp.Attributes.Value("result")
				results[result.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"allowed": 1, "denied": 1}, results)
}
