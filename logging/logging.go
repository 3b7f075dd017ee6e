// Package logging builds the zap logger used by the server and adapts it
// to auth.Logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	auth "github.com/fenixedu/fenix-auth"
)

type Log struct {
	Base   *zap.Logger
	Sugar  *zap.SugaredLogger
	Level  zap.AtomicLevel
	Closer func()
}

func Init(level, env string) (*Log, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, err
	}
	return FromZap(base, lvl), nil
}

// FromZap wraps an existing zap logger.
func FromZap(base *zap.Logger, lvl zap.AtomicLevel) *Log {
	return &Log{
		Base:   base,
		Sugar:  base.Sugar(),
		Level:  lvl,
		Closer: func() { _ = base.Sync() },
	}
}

// Named returns an auth.Logger scoped to name.
func (l *Log) Named(name string) auth.Logger {
	return Logger{sugar: l.Sugar.Named(name)}
}

// Logger adapts a zap sugared logger to auth.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ auth.Logger = Logger{}

// NewLogger wraps sugar.
func NewLogger(sugar *zap.SugaredLogger) Logger {
	return Logger{sugar: sugar}
}

func (l Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l Logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l Logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }
