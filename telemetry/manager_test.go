package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func stdoutConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = "authd-test"
	cfg.Exporter.Type = "stdout"
	cfg.Sampler.Type = "always_on"
	cfg.Batch.Enabled = false
	return cfg
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{Enabled: false}, logger.NewNop())
	require.NoError(t, m.Start(context.Background()))

	_, isSDK := m.TracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.False(t, m.MetricsEnabled())
	assert.NotNil(t, m.Meter("auth"))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StdoutTraces(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(stdoutConfig(), logger.NewNop(), WithWriter(&buf))
	require.NoError(t, m.Start(context.Background()))

	_, span := m.TracerProvider().Tracer("test").Start(context.Background(), "login")
	span.End()

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"login"`)
	assert.Contains(t, buf.String(), "authd-test")
}

func TestManager_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	cfg := stdoutConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.ExportInterval = time.Hour

	m := NewManager(cfg, logger.NewNop(), WithWriter(&buf))
	require.NoError(t, m.Start(context.Background()))
	require.True(t, m.MetricsEnabled())

	counter, err := m.Meter("auth").Int64Counter("auth_operations_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "auth_operations_total")
}

func TestManager_NoneExporterSkipsMetrics(t *testing.T) {
	cfg := stdoutConfig()
	cfg.Exporter.Type = "none"
	cfg.Metrics.Enabled = true

	m := NewManager(cfg, logger.NewNop())
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Shutdown(context.Background()) }()

	_, isSDK := m.TracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)
	assert.False(t, m.MetricsEnabled())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{Enabled: false, Exporter: ExporterConfig{Type: "zipkin"}}).Validate())

	cfg := DefaultConfig()
	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.Exporter.Type = "zipkin"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Exporter.Endpoint = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Sampler = SamplerConfig{Type: "trace_id_ratio", Ratio: 1.5}
	assert.Error(t, bad.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	assert.Equal(t, "authd", cfg.ServiceName)
	assert.Equal(t, "otlp", cfg.Exporter.Type)
	assert.Equal(t, "parent_based_always_on", cfg.Sampler.Type)
	assert.Equal(t, 10*time.Second, cfg.Metrics.ExportInterval)
}

func TestFlattenMap(t *testing.T) {
	got := flattenMap(map[string]interface{}{
		"deployment": map[string]interface{}{"environment": "test"},
		"replicas":   3,
	}, "")
	assert.Equal(t, map[string]string{"deployment.environment": "test", "replicas": "3"}, got)
}
