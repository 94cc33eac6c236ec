// Package logger builds the zap loggers used by the daemon and the
// map-fields Logger handed to the orchestrator, search, API and workers.
package logger

import (
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// New returns a zap logger at the named level ("info" when unrecognised).
// format "json" gives the production encoder, anything else the console one.
// output is a zap sink such as "stdout", "stderr" or a file path.
func New(level, format string, output ...string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.Level = lvl

	if len(output) > 0 && output[0] != "" {
		cfg.OutputPaths = []string{output[0]}
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

type fieldLogger struct {
	z *zap.Logger
}

func (f *fieldLogger) Debug(msg string, fields map[string]interface{}) {
	f.z.Debug(msg, zapFields(fields)...)
}

func (f *fieldLogger) Info(msg string, fields map[string]interface{}) {
	f.z.Info(msg, zapFields(fields)...)
}

func (f *fieldLogger) Warn(msg string, fields map[string]interface{}) {
	f.z.Warn(msg, zapFields(fields)...)
}

func (f *fieldLogger) Error(msg string, fields map[string]interface{}) {
	f.z.Error(msg, zapFields(fields)...)
}

func (f *fieldLogger) With(fields map[string]interface{}) Logger {
	return &fieldLogger{z: f.z.With(zapFields(fields)...)}
}

// zapFields emits keys in sorted order; error values keep their key.
func zapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func NewZapAdapter(l *zap.Logger) Logger {
	return &fieldLogger{z: l}
}

// NewTestLogger routes output through t.Log.
func NewTestLogger(t testing.TB) Logger {
	return &fieldLogger{z: zaptest.NewLogger(t)}
}

func NewNoOpLogger() Logger {
	return &fieldLogger{z: zap.NewNop()}
}
