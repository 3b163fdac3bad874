package logger

import (
	"strings"
)

// GinLogWriter adapts gin's text output to a module logger (implements io.Writer).
// Assign it to gin.DefaultWriter and gin.DefaultErrorWriter.
type GinLogWriter struct {
	log *CtxZapLogger
}

// NewGinLogWriter creates a writer logging to module
func NewGinLogWriter(module string) *GinLogWriter {
	return &GinLogWriter{log: GetLogger(module)}
}

func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		w.log.Debug(msg)
	case strings.Contains(msg, "[Recovery]"), strings.Contains(msg, "panic recovered"):
		w.log.Error(msg)
	default:
		w.log.Info(msg)
	}

	return len(p), nil
}
