package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newZap builds the process logger. Logs go to stderr so command output on
// stdout stays machine readable.
func newZap(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.LogLevel)
	if cfg.LogDev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stderr), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// zapLogger adapts a zap.SugaredLogger to auth.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// loggerProvider hands out zap loggers named after the component.
func loggerProvider(base *zap.Logger) auth.LoggerProvider {
	return auth.LoggerProviderFunc(func(name string) auth.Logger {
		return zapLogger{s: base.Named(name).Sugar()}
	})
}
