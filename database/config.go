// Package database opens the gorm connection backing user storage.
package database

import (
	"fmt"
	"time"
)

// Config database configuration
type Config struct {
	Driver          string        `mapstructure:"driver"` // mysql, postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	EnableLog       bool          `mapstructure:"enable_log"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`

	// ConnectAttempts bounds the initial connection, ConnectBackoff is the first wait between tries
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`

	// TraceSQL records statements on spans, truncated to TraceSQLMaxLen
	TraceSQL       bool `mapstructure:"trace_sql"`
	TraceSQLMaxLen int  `mapstructure:"trace_sql_max_len"`
}

func DefaultConfig() Config {
	return Config{
		Driver:          "mysql",
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		EnableLog:       true,
		SlowThreshold:   200 * time.Millisecond,
		TraceSQL:        false,
		TraceSQLMaxLen:  1000,
		ConnectAttempts: 5,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

// ApplyDefaults fills zero-valued fields
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Driver == "" {
		c.Driver = d.Driver
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = d.SlowThreshold
	}
	if c.TraceSQLMaxLen <= 0 {
		c.TraceSQLMaxLen = d.TraceSQLMaxLen
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = d.ConnectAttempts
	}
	if c.ConnectBackoff <= 0 {
		c.ConnectBackoff = d.ConnectBackoff
	}
}

func (c Config) Validate() error {
	switch c.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	}
	return nil
}
