package logger

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ManagerConfig is shared by every module logger created by a Manager
type ManagerConfig struct {
	BaseLogDir       string `mapstructure:"base_log_dir"` // root directory, one sub directory per module
	Level            string `mapstructure:"level"`
	AppName          string `mapstructure:"app_name"` // injected into every entry, even when empty
	Encoding         string `mapstructure:"encoding"` // json or console
	EnableConsole    bool   `mapstructure:"enable_console"`
	EnableFile       bool   `mapstructure:"enable_file"`
	MaxSize          int    `mapstructure:"max_size"` // MB per file before rotation
	MaxBackups       int    `mapstructure:"max_backups"`
	MaxAge           int    `mapstructure:"max_age"` // days
	Compress         bool   `mapstructure:"compress"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableTraceID    bool   `mapstructure:"enable_trace_id"`
	TraceIDKey       string `mapstructure:"trace_id_key"`        // context key written by middleware.TraceID
	TraceIDFieldName string `mapstructure:"trace_id_field_name"` // log field name
}

// DefaultManagerConfig returns console-only JSON logging at info level
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BaseLogDir:       "logs",
		Level:            "info",
		Encoding:         "json",
		EnableConsole:    true,
		EnableFile:       false,
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           28,
		Compress:         true,
		EnableCaller:     true,
		EnableTraceID:    true,
		TraceIDKey:       "trace_id",
		TraceIDFieldName: "trace_id",
	}
}

// ApplyDefaults fills zero-valued fields in place.
// Booleans are left untouched: a zero value cannot be told apart from an explicit false.
func (c *ManagerConfig) ApplyDefaults() {
	defaults := DefaultManagerConfig()

	if c.BaseLogDir == "" {
		c.BaseLogDir = defaults.BaseLogDir
	}
	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.Encoding == "" {
		c.Encoding = defaults.Encoding
	}
	if c.TraceIDKey == "" {
		c.TraceIDKey = defaults.TraceIDKey
	}
	if c.TraceIDFieldName == "" {
		c.TraceIDFieldName = defaults.TraceIDFieldName
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
}

// Validate checks enum and range fields
func (c ManagerConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, c.Level) {
		return fmt.Errorf("[Logger] level must be one of %v, got %q", validLevels, c.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, c.Encoding) {
		return fmt.Errorf("[Logger] encoding must be one of %v, got %q", validEncodings, c.Encoding)
	}

	if c.EnableFile {
		if c.BaseLogDir == "" {
			return fmt.Errorf("[Logger] base_log_dir is required when file output is enabled")
		}
		if c.MaxSize < 1 || c.MaxSize > 10000 {
			return fmt.Errorf("[Logger] max_size must be between 1-10000MB, got %d", c.MaxSize)
		}
	}

	return nil
}

// infoFilePath and errorFilePath split output by severity: logs/<module>/<module>-info.log
func (c ManagerConfig) infoFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-info.log")
}

func (c ManagerConfig) errorFilePath(module string) string {
	return filepath.Join(c.BaseLogDir, module, module+"-error.log")
}

// ParseLevel parses a level name, falling back to info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
