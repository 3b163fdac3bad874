package middleware

import (
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogConfig configures RequestLog
type RequestLogConfig struct {
	// SkipPaths are not logged, e.g. health checks
	SkipPaths []string `mapstructure:"skip_paths"`

	// Logger receives the entries, nil uses the "http" module
	Logger *logger.CtxZapLogger `mapstructure:"-"`
}

func DefaultRequestLogConfig() RequestLogConfig {
	return RequestLogConfig{
		SkipPaths: []string{},
	}
}

// RequestLog replaces gin.Logger with structured entries.
// Level follows the status: 5xx error, 4xx warn, otherwise info.
// Headers are never logged, so credentials stay out of the logs.
func RequestLog() gin.HandlerFunc {
	return RequestLogWithConfig(DefaultRequestLogConfig())
}

func RequestLogWithConfig(cfg RequestLogConfig) gin.HandlerFunc {
	skipPathsMap := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPathsMap[path] = true
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger("http")
	}

	return func(c *gin.Context) {
		if skipPathsMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			fields = append(fields, zap.String("error", errorMessage))
		}
		if id, ok := GetIdentity(c); ok {
			fields = append(fields, zap.Int64("subject_id", id.SubjectID))
		}

		ctx := c.Request.Context()
		switch {
		case statusCode >= 500:
			log.ErrorCtx(ctx, "http request", fields...)
		case statusCode >= 400:
			log.WarnCtx(ctx, "http request", fields...)
		default:
			log.InfoCtx(ctx, "http request", fields...)
		}
	}
}
