package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used across the engine.
// Key-value pairs follow the message, sugared style.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	WithField(key string, value interface{}) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l zapLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l zapLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

func (l zapLogger) WithField(key string, value interface{}) Logger {
	return zapLogger{s: l.s.With(key, value)}
}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	root  Logger
)

func init() {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	root = zapLogger{s: zap.New(core).Sugar()}
}

// SetLevel adjusts the global log level: "debug", "info", "warn",
// "error". Unknown values are ignored.
func SetLevel(name string) {
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return
	}
	level.SetLevel(parsed)
}

// SetLogger replaces the root logger, for tests.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
}

// WithField returns the root logger tagged with one field.
func WithField(key string, value interface{}) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.WithField(key, value)
}
