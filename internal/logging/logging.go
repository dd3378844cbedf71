package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured context for a log entry.
type Fields map[string]interface{}

// Logger is a component-scoped structured logger backed by zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
			if parsed, err := zapcore.ParseLevel(lvl); err == nil {
				cfg.Level = zap.NewAtomicLevelAt(parsed)
			}
		}
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// New creates a logger tagged with the given component name.
func New(component string) *Logger {
	return &Logger{
		sugar: baseLogger().Sugar().With("component", component),
	}
}

func (l *Logger) Debug(msg string, fields Fields) { l.sugar.Debugw(msg, flatten(fields)...) }
func (l *Logger) Info(msg string, fields Fields)  { l.sugar.Infow(msg, flatten(fields)...) }
func (l *Logger) Warn(msg string, fields Fields)  { l.sugar.Warnw(msg, flatten(fields)...) }
func (l *Logger) Error(msg string, fields Fields) { l.sugar.Errorw(msg, flatten(fields)...) }

// Fatal logs the entry and exits the process.
func (l *Logger) Fatal(msg string, fields Fields) { l.sugar.Fatalw(msg, flatten(fields)...) }

func flatten(fields Fields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
