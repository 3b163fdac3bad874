package logger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm output to a module logger (implements gorm logger.Interface)
type GormLogger struct {
	log           *CtxZapLogger
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

// GormLoggerConfig configures GormLogger
type GormLoggerConfig struct {
	SlowThreshold time.Duration       // default 200ms, 0 disables slow query detection
	LogLevel      gormlogger.LogLevel // default Warn
}

// DefaultGormLoggerConfig default configuration
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormlogger.Warn,
	}
}

// NewGormLogger creates a gorm logger writing to log
func NewGormLogger(log *CtxZapLogger, cfg GormLoggerConfig) *GormLogger {
	if log == nil {
		log = GetLogger("sql")
	}
	return &GormLogger{
		log:           log,
		slowThreshold: cfg.SlowThreshold,
		logLevel:      cfg.LogLevel,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.log.DebugCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.log.WarnCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.log.ErrorCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs every executed statement according to the configured level
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("sql", SanitizeSQL(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		// a missing row is a normal lookup outcome
		if errors.Is(err, gormlogger.ErrRecordNotFound) {
			if l.logLevel >= gormlogger.Info {
				l.log.DebugCtx(ctx, "sql executed", fields...)
			}
			return
		}
		l.log.ErrorCtx(ctx, "sql failed", append(fields, zap.Error(err))...)

	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		l.log.WarnCtx(ctx, "slow sql", append(fields, zap.Duration("threshold", l.slowThreshold))...)

	case l.logLevel >= gormlogger.Info:
		l.log.DebugCtx(ctx, "sql executed", fields...)
	}
}

var bcryptHashPattern = regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}`)

// SanitizeSQL masks bcrypt password hashes inlined into rendered statements
func SanitizeSQL(sql string) string {
	return bcryptHashPattern.ReplaceAllString(sql, "***")
}
