package redis

import (
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:6379"}
	cfg.ApplyDefaults()

	assert.Equal(t, "standalone", cfg.Mode)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Addrs)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{Mode: "sentinel", Addrs: []string{"a"}}).Validate())
	assert.Error(t, (&Config{Mode: "standalone"}).Validate())
	assert.Error(t, (&Config{Mode: "standalone", Addrs: []string{"a"}, DB: 16}).Validate())
	assert.NoError(t, (&Config{Mode: "cluster", Addrs: []string{"a", "b"}}).Validate())
}

func TestOpen_Standalone(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Open(context.Background(), Config{Addr: mr.Addr()}, nil, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}

func TestOpen_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Config{
		Addr:            addr,
		DialTimeout:     200 * time.Millisecond,
		ConnectAttempts: 2,
		ConnectBackoff:  time.Millisecond,
	}, nil, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestMetricsHook_RecordsCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics := NewMetrics()
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("redis")))
	require.NoError(t, metrics.RegisterMetrics(provider.Meter("redis")))

	ctx := context.Background()
	client, err := Open(ctx, Config{Addr: mr.Addr()}, metrics, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	client.Set(ctx, "a", "1", 0)
	client.Get(ctx, "missing")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	perCommand := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "redis_commands_total" {
				continue
			}
			data, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range data.DataPoints {
				cmd, _ := dp.Attributes.Value("command")
				perCommand[cmd.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), perCommand["set"])
	assert.Equal(t, int64(1), perCommand["get"])
	assert.GreaterOrEqual(t, perCommand["ping"], int64(1))
}

func TestHealthChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Open(context.Background(), Config{Addr: mr.Addr()}, nil, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	h := NewHealthChecker(client)
	assert.Equal(t, "redis", h.Name())
	assert.NoError(t, h.Check(context.Background()))

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.Error(t, h.Check(ctx))

	assert.Error(t, NewHealthChecker(nil).Check(context.Background()))
}
