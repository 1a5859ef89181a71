// Package logging contains the structured logger used by every component of the drive core.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout.
func NewLogger(name string) Logger {
	return newFromConfig(name, INFO)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout.
func NewDebugLogger(name string) Logger {
	return newFromConfig(name, DEBUG)
}

func newFromConfig(name string, level Level) Logger {
	atomicLevel := zap.NewAtomicLevelAt(level.AsZap())
	cfg := NewLoggerConfig()
	cfg.Level = atomicLevel
	zl, err := cfg.Build()
	if err != nil {
		// the default config only fails to build when stdout cannot be opened
		zl = zap.NewNop()
	}
	return &impl{sugar: zl.Sugar().Named(name), level: atomicLevel}
}

// NewBlankLogger returns a logger that discards everything written to it.
func NewBlankLogger(name string) Logger {
	return &impl{sugar: zap.NewNop().Sugar().Named(name), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's Log method.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	testCore := zaptest.NewLogger(tb, zaptest.Level(level)).Core()
	observerCore, observedLogs := observer.New(level)
	zl := zap.New(zapcore.NewTee(testCore, observerCore), zap.AddCaller())
	return &impl{sugar: zl.Sugar(), level: level}, observedLogs
}
