package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig configures HTTPMetrics
type HTTPMetricsConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	RecordRequestSize  bool `mapstructure:"record_request_size"`
	RecordResponseSize bool `mapstructure:"record_response_size"`
}

// HTTPMetrics records request counts, latency and in-flight requests.
// The handler passes requests through untouched until RegisterMetrics succeeds.
type HTTPMetrics struct {
	config     HTTPMetricsConfig
	mu         sync.RWMutex
	registered bool

	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	requestsInFlight metric.Int64UpDownCounter
	requestSize      metric.Int64Histogram
	responseSize     metric.Int64Histogram
}

func NewHTTPMetrics(cfg HTTPMetricsConfig) *HTTPMetrics {
	return &HTTPMetrics{config: cfg}
}

func (m *HTTPMetrics) MetricsName() string { return "http" }

func (m *HTTPMetrics) IsMetricsEnabled() bool { return m.config.Enabled }

func (m *HTTPMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// RegisterMetrics creates the instruments on meter. Calling it twice is a no-op.
func (m *HTTPMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.requestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.requestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration distribution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.requestsInFlight, err = meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	if m.config.RecordRequestSize {
		m.requestSize, err = meter.Int64Histogram(
			"http_request_size_bytes",
			metric.WithDescription("HTTP request body size distribution"),
			metric.WithUnit("By"),
		)
		if err != nil {
			return err
		}
	}

	if m.config.RecordResponseSize {
		m.responseSize, err = meter.Int64Histogram(
			"http_response_size_bytes",
			metric.WithDescription("HTTP response body size distribution"),
			metric.WithUnit("By"),
		)
		if err != nil {
			return err
		}
	}

	m.registered = true
	return nil
}

// Handler returns the gin middleware
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.config.Enabled || !m.IsRegistered() {
			c.Next()
			return
		}

		start := time.Now()
		ctx := c.Request.Context()
		// route pattern, not the raw path, keeps cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.requestsInFlight.Add(ctx, 1)
		defer m.requestsInFlight.Add(ctx, -1)

		if m.requestSize != nil && c.Request.ContentLength > 0 {
			m.requestSize.Record(ctx, c.Request.ContentLength, metric.WithAttributes(
				attribute.String("method", c.Request.Method),
				attribute.String("path", path),
			))
		}

		c.Next()

		statusCode := c.Writer.Status()
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status_code", statusCode),
			attribute.String("status_class", getStatusClass(statusCode)),
		)
		m.requestsTotal.Add(ctx, 1, attrs)
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		if m.responseSize != nil {
			if size := int64(c.Writer.Size()); size > 0 {
				m.responseSize.Record(ctx, size, metric.WithAttributes(
					attribute.String("method", c.Request.Method),
					attribute.String("path", path),
				))
			}
		}
	}
}

func getStatusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
