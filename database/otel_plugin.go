package database

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	instrumentationName    = "github.com/KOMKZ/go-yogan-tokenauth/database"
	instrumentationVersion = "0.1.0"
	spanInstanceKey        = "otel:span"
)

// OtelPlugin is a gorm plugin creating one client span per statement
type OtelPlugin struct {
	tracer    trace.Tracer
	traceSQL  bool
	sqlMaxLen int
}

// NewOtelPlugin uses the global TracerProvider when tracerProvider is nil
func NewOtelPlugin(tracerProvider trace.TracerProvider) *OtelPlugin {
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	return &OtelPlugin{
		tracer:    tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion)),
		sqlMaxLen: 1000,
	}
}

// WithTraceSQL records statements on spans. Statements may carry hashes, so it is off by default.
func (p *OtelPlugin) WithTraceSQL(enabled bool) *OtelPlugin {
	p.traceSQL = enabled
	return p
}

func (p *OtelPlugin) WithSQLMaxLen(maxLen int) *OtelPlugin {
	if maxLen > 0 {
		p.sqlMaxLen = maxLen
	}
	return p
}

func (p *OtelPlugin) Name() string {
	return "otel"
}

// Initialize registers before/after callbacks around every gorm processor
func (p *OtelPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("create")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("query")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("update")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("delete")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("row")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("raw")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after)
}

func (p *OtelPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		spanName := "gorm." + op
		if db.Statement.Table != "" {
			spanName += " " + db.Statement.Table
		}

		ctx, span := p.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			attribute.String("db.system", db.Dialector.Name()),
			attribute.String("db.operation", op),
		)
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.table", db.Statement.Table))
		}

		db.Statement.Context = ctx
		db.InstanceSet(spanInstanceKey, span)
	}
}

func (p *OtelPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanInstanceKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if p.traceSQL {
		if sql := db.Statement.SQL.String(); sql != "" {
			if len(sql) > p.sqlMaxLen {
				sql = sql[:p.sqlMaxLen] + "..."
			}
			span.SetAttributes(attribute.String("db.statement", sql))
		}
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
