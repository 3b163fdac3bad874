package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns one CtxZapLogger per module
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	zapLoggers map[string]*zap.Logger
	writers    map[string][]*lumberjack.Logger // kept for Close
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates a standalone Manager. Zero-valued fields in cfg are defaulted.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		zapLoggers: make(map[string]*zap.Logger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager initializes the process-wide Manager. Only the first call has an effect.
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// GetLogger returns the logger bound to moduleName, creating it on first use
func (m *Manager) GetLogger(moduleName string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[moduleName]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[moduleName]; ok {
		return l
	}

	base := m.createLogger(moduleName).With(zap.String("module", moduleName))
	l := &CtxZapLogger{
		// skip the CtxZapLogger wrapper frame when reporting the caller
		base:   base.WithOptions(zap.AddCallerSkip(1)),
		module: moduleName,
		config: &m.baseConfig,
	}

	m.loggers[moduleName] = l
	m.zapLoggers[moduleName] = base
	return l
}

func (m *Manager) createLogger(moduleName string) *zap.Logger {
	cfg := m.baseConfig
	encoder := createEncoder(cfg.Encoding)
	level := ParseLevel(cfg.Level)

	var cores []zapcore.Core

	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.EnableFile {
		infoWriter, infoLumber := createFileWriter(cfg.infoFilePath(moduleName), cfg)
		errorWriter, errorLumber := createFileWriter(cfg.errorFilePath(moduleName), cfg)
		m.writers[moduleName] = []*lumberjack.Logger{infoLumber, errorLumber}

		cores = append(cores,
			zapcore.NewCore(encoder, infoWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			})),
			zapcore.NewCore(encoder, errorWriter, zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel
			})),
		)
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}

	return zap.New(zapcore.NewTee(cores...), opts...)
}

// CloseAll flushes buffers and closes file handles
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.zapLoggers {
		_ = l.Sync()
	}
	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	m.loggers = make(map[string]*CtxZapLogger)
	m.zapLoggers = make(map[string]*zap.Logger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

func createEncoder(encoding string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if encoding == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func createFileWriter(filename string, cfg ManagerConfig) (zapcore.WriteSyncer, *lumberjack.Logger) {
	_ = os.MkdirAll(filepath.Dir(filename), 0o755)

	lumber := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	return zapcore.AddSync(lumber), lumber
}

// ============================================
// package-level helpers backed by the global Manager
// ============================================

// GetLogger returns the module logger from the global Manager, initializing it with defaults if needed
func GetLogger(moduleName string) *CtxZapLogger {
	if globalManager == nil {
		InitManager(DefaultManagerConfig())
	}
	return globalManager.GetLogger(moduleName)
}

// CloseAll closes the global Manager's loggers
func CloseAll() {
	if globalManager == nil {
		return
	}
	globalManager.CloseAll()
}
