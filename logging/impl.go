package logging

import (
	"go.uber.org/zap"
)

// Logger is the logging surface handed to every component.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger whose name is this logger's name with subname appended.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func (imp *impl) Debug(args ...interface{}) { imp.sugar.Debug(args...) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.sugar.Debugf(template, args...) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.sugar.Info(args...) }

func (imp *impl) Infof(template string, args ...interface{}) { imp.sugar.Infof(template, args...) }

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugar.Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.sugar.Warn(args...) }

func (imp *impl) Warnf(template string, args ...interface{}) { imp.sugar.Warnf(template, args...) }

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.sugar.Error(args...) }

func (imp *impl) Errorf(template string, args ...interface{}) { imp.sugar.Errorf(template, args...) }

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Errorw(msg, keysAndValues...)
}

// Sublogger shares the level of its parent, so SetLevel on either affects both.
func (imp *impl) Sublogger(subname string) Logger {
	return &impl{sugar: imp.sugar.Named(subname), level: imp.level}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugar
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}
