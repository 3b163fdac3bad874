package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxZapLogger wraps zap with a module bound at creation time.
// Callers only pass ctx; app_name and trace_id are added automatically.
//
//	log := logger.GetLogger("auth")
//	log.InfoCtx(ctx, "login succeeded", zap.Int64("subject_id", id))
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig
}

// NewCtxZapLogger returns the global logger for module
func NewCtxZapLogger(module string) *CtxZapLogger {
	return GetLogger(module)
}

// NewFromZap wraps an existing zap logger, e.g. a zaptest/observer core in tests
func NewFromZap(base *zap.Logger, module string, cfg *ManagerConfig) *CtxZapLogger {
	return &CtxZapLogger{
		base:   base.With(zap.String("module", module)),
		module: module,
		config: cfg,
	}
}

// NewNop returns a logger that discards everything
func NewNop() *CtxZapLogger {
	return &CtxZapLogger{base: zap.NewNop(), module: "nop"}
}

func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Error(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

// With returns a child logger carrying preset fields
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// GetZapLogger exposes the underlying *zap.Logger for third-party integrations
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

// Module returns the bound module name
func (l *CtxZapLogger) Module() string {
	return l.module
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.config == nil {
		return fields
	}

	enriched := make([]zap.Field, 0, len(fields)+2)
	enriched = append(enriched, zap.String("app_name", l.config.AppName))

	if l.config.EnableTraceID && ctx != nil {
		if traceID := extractTraceIDFromContext(ctx, l.config); traceID != "" {
			enriched = append(enriched, zap.String(l.config.TraceIDFieldName, traceID))
		}
	}

	return append(enriched, fields...)
}

// extractTraceIDFromContext prefers the OpenTelemetry span, then the configured context key
func extractTraceIDFromContext(ctx context.Context, cfg *ManagerConfig) string {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	key := "trace_id"
	if cfg != nil && cfg.TraceIDKey != "" {
		key = cfg.TraceIDKey
	}
	if val, ok := ctx.Value(TraceIDContextKey(key)).(string); ok {
		return val
	}
	return ""
}

// TraceIDContextKey is the typed key under which middleware.TraceID stores the request trace id
type TraceIDContextKey string
