// Package logger owns the process-wide zap logger and the echo helpers that
// carry a request-scoped child logger.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects level and encoding for InitLogger.
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var log = zap.NewNop()

// InitLogger builds the global logger.  Production gets JSON with ISO8601
// timestamps; anything else gets the colored development console encoder.
func InitLogger(cfg LogConfig) *zap.Logger {
	level := parseLevel(cfg.Level)

	var (
		l   *zap.Logger
		err error
	)
	if cfg.Environment == "prod" || cfg.Environment == "production" {
		prodConfig := zap.NewProductionConfig()
		prodConfig.Level = zap.NewAtomicLevelAt(level)
		prodConfig.EncoderConfig.TimeKey = "timestamp"
		prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = prodConfig.Build(zap.Fields(zap.String("service", cfg.ServiceName)))
	} else {
		devConfig := zap.NewDevelopmentConfig()
		devConfig.Level = zap.NewAtomicLevelAt(level)
		devConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = devConfig.Build(zap.Fields(zap.String("service", cfg.ServiceName)))
	}
	if err != nil {
		// Can't use the logger here
		panic("failed to initialize logger: " + err.Error())
	}
	log = l
	zap.ReplaceGlobals(l)
	return l
}

// L returns the global logger.  Before InitLogger it is a no-op logger.
func L() *zap.Logger { return log }

// Set replaces the global logger; tests use it with zaptest/observer cores.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
