// Package logger provides process-wide logging for docchat.
// Messages below the current level are discarded. The CLI starts at warn
// level; --verbose lowers it to debug and the HTTP server raises it to info
// so that request and pipeline events are visible.
//
// The printf helpers cover most call sites. Code that wants structured
// fields uses L() and zap fields directly.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	output io.Writer = os.Stderr
	base   = build(output)
)

func build(w io.Writer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      bracketLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})
	return zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level))
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.WarnLevel)
}

// IsVerbose returns true if debug messages are emitted.
func IsVerbose() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// SetLevel sets the minimum level directly.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build(w)
}

// L returns the underlying structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	if level.Enabled(zapcore.DebugLevel) {
		L().Debug(fmt.Sprintf(format, args...))
	}
}

// Section logs a section header at debug level.
func Section(name string) {
	if level.Enabled(zapcore.DebugLevel) {
		L().Debug(fmt.Sprintf("=== %s ===", name))
	}
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	if level.Enabled(zapcore.InfoLevel) {
		L().Info(fmt.Sprintf(format, args...))
	}
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...any) {
	L().Warn(fmt.Sprintf(format, args...))
}

// Error logs a formatted message at error level.
func Error(format string, args ...any) {
	L().Error(fmt.Sprintf(format, args...))
}
