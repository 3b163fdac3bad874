package server

import (
	"github.com/KOMKZ/go-yogan-tokenauth/api"
	"github.com/KOMKZ/go-yogan-tokenauth/health"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/middleware"
	"github.com/KOMKZ/go-yogan-tokenauth/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps are the collaborators of NewRouter. Telemetry, Metrics and RateLimiter may be nil.
type RouterDeps struct {
	Config        *Config
	Telemetry     *telemetry.Manager
	Metrics       *middleware.HTTPMetrics
	RateLimiter   *middleware.RateLimiter
	Authenticator *middleware.Authenticator
	Handler       *api.Handler
	Health        *health.Aggregator
}

// NewRouter builds the gin engine. Middleware order:
//
//	Recovery -> otelgin -> TraceID -> RequestLog -> HTTPMetrics -> ErrorLogging -> RateLimit -> Authenticate
//
// otelgin must precede TraceID so the span's trace id is reused.
func NewRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config

	gin.DefaultWriter = logger.NewGinLogWriter("gin")
	gin.DefaultErrorWriter = logger.NewGinLogWriter("gin")
	gin.SetMode(cfg.ApiServer.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.Recovery())

	if d.Telemetry != nil && d.Telemetry.IsEnabled() {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName,
			otelgin.WithTracerProvider(d.Telemetry.TracerProvider()),
		))
	}

	if cfg.Middleware.TraceID.Enable {
		engine.Use(middleware.TraceID(cfg.Middleware.traceConfig()))
	}

	if cfg.Middleware.RequestLog.Enable {
		engine.Use(middleware.RequestLogWithConfig(middleware.RequestLogConfig{
			SkipPaths: cfg.Middleware.RequestLog.SkipPaths,
		}))
	}

	if d.Metrics != nil {
		engine.Use(d.Metrics.Handler())
	}

	engine.Use(httpx.ErrorLoggingMiddleware(cfg.Httpx))
	if d.RateLimiter != nil {
		engine.Use(d.RateLimiter.Handler())
	}
	engine.Use(d.Authenticator.Handler())

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	api.RegisterRoutes(engine.Group("/api"), d.Handler, d.Health)
	return engine
}
