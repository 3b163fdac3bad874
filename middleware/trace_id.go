package middleware

import (
	"context"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDKeyDefault is the gin and context key of the trace id
	TraceIDKeyDefault = "trace_id"

	// TraceIDHeaderDefault is the request and response header carrying the trace id
	TraceIDHeaderDefault = "X-Trace-ID"

	maxTraceIDLength = 128
)

// TraceConfig configures TraceID
type TraceConfig struct {
	// TraceIDKey must match logger.ManagerConfig.TraceIDKey for log enrichment
	TraceIDKey    string
	TraceIDHeader string

	EnableResponseHeader bool

	// Generator creates ids when the request carries no usable one (default uuid v4)
	Generator func() string
}

func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDKey:           TraceIDKeyDefault,
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
		Generator:            newTraceID,
	}
}

func newTraceID() string { return uuid.New().String() }

func (c *TraceConfig) applyDefaults() {
	if c.TraceIDKey == "" {
		c.TraceIDKey = TraceIDKeyDefault
	}
	if c.TraceIDHeader == "" {
		c.TraceIDHeader = TraceIDHeaderDefault
	}
	if c.Generator == nil {
		c.Generator = newTraceID
	}
}

// TraceID gives every request a trace id that ends up in the gin context,
// the request context (logger.TraceIDContextKey) and optionally the response.
// An active OpenTelemetry span wins over the client header. Client supplied
// ids that are too long or contain non-printable characters are replaced.
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	cfg.applyDefaults()

	return func(c *gin.Context) {
		traceID, fromSpan := spanTraceID(c.Request.Context())
		if !fromSpan {
			traceID = c.GetHeader(cfg.TraceIDHeader)
			if !acceptableTraceID(traceID) {
				traceID = cfg.Generator()
			}
			ctx := context.WithValue(c.Request.Context(), logger.TraceIDContextKey(cfg.TraceIDKey), traceID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Set(cfg.TraceIDKey, traceID)
		if cfg.EnableResponseHeader {
			c.Header(cfg.TraceIDHeader, traceID)
		}
		c.Next()
	}
}

func spanTraceID(ctx context.Context) (string, bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", false
	}
	return sc.TraceID().String(), true
}

func acceptableTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetTraceID returns the trace id stored under the default key
func GetTraceID(c *gin.Context) string {
	return GetTraceIDWithKey(c, TraceIDKeyDefault)
}

func GetTraceIDWithKey(c *gin.Context, key string) string {
	return c.GetString(key)
}
