package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one structured object per entry under the given key.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// std is the process logger installed by Init or New.
var std *zap.Logger

// Init installs a JSON logger on stdout.
func Init(level string) (Logger, error) {
	return New(level, os.Stdout), nil
}

// New returns a JSON-lines logger writing to w and makes it the process logger.
func New(level string, w io.Writer) Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	std = zap.New(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), parseLevel(level)),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return objLogger{std}
}

// parseLevel falls back to info for anything zap does not recognise.
func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

// Close flushes the process logger.
func Close() error {
	if std == nil {
		return nil
	}
	return std.Sync()
}

type objLogger struct {
	z *zap.Logger
}

func (l objLogger) InfoObj(msg, key string, obj interface{})  { l.z.Info(msg, zap.Any(key, obj)) }
func (l objLogger) DebugObj(msg, key string, obj interface{}) { l.z.Debug(msg, zap.Any(key, obj)) }
func (l objLogger) WarnObj(msg, key string, obj interface{})  { l.z.Warn(msg, zap.Any(key, obj)) }
func (l objLogger) ErrorObj(msg, key string, obj interface{}) { l.z.Error(msg, zap.Any(key, obj)) }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

// Ensure returns log, or a NopLogger when log is nil.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}

// InfoObj logs through the process logger. It is a no-op before Init.
func InfoObj(msg, key string, obj interface{}) {
	if std != nil {
		std.Info(msg, zap.Any(key, obj))
	}
}

// ErrorObj logs through the process logger. It is a no-op before Init.
func ErrorObj(msg, key string, obj interface{}) {
	if std != nil {
		std.Error(msg, zap.Any(key, obj))
	}
}
