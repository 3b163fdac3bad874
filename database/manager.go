package database

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/retry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Manager owns the single connection pool
type Manager struct {
	db     *gorm.DB
	driver string
	logger *logger.CtxZapLogger
}

// Open connects according to cfg. tracerProvider may be nil for the global provider.
func Open(cfg Config, log *logger.CtxZapLogger, tracerProvider trace.TracerProvider) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger("database")
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	var gormLog gormlogger.Interface = gormlogger.Default.LogMode(gormlogger.Silent)
	if cfg.EnableLog {
		gormLog = logger.NewGormLogger(logger.GetLogger("sql"), logger.GormLoggerConfig{
			SlowThreshold: cfg.SlowThreshold,
			LogLevel:      gormlogger.Warn,
		})
	}

	db, err := retry.DoWithData(context.Background(), func(context.Context) (*gorm.DB, error) {
		return gorm.Open(dialector, &gorm.Config{
			Logger:  gormLog,
			NowFunc: func() time.Time { return time.Now().UTC() },
		})
	},
		retry.Attempts(cfg.ConnectAttempts),
		retry.WithBackoff(retry.Exponential(cfg.ConnectBackoff, 10*time.Second, 0.2)),
		retry.OnRetry(func(attempt int, err error) {
			log.Warn("database connect failed, retrying", zap.String("driver", cfg.Driver), zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	plugin := NewOtelPlugin(tracerProvider).WithTraceSQL(cfg.TraceSQL).WithSQLMaxLen(cfg.TraceSQLMaxLen)
	if err := db.Use(plugin); err != nil {
		return nil, fmt.Errorf("use otel plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Debug("database connected", zap.String("driver", cfg.Driver))
	return &Manager{db: db, driver: cfg.Driver, logger: log}, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, cfg.Driver)
}

func (m *Manager) DB() *gorm.DB { return m.db }

func (m *Manager) Driver() string { return m.driver }

// Ping checks the pool
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		m.logger.Error("close database failed", zap.Error(err))
		return err
	}
	return nil
}

// Shutdown implements do.Shutdowner
func (m *Manager) Shutdown() error {
	return m.Close()
}
