// Package logging wires the structured logger used across the service to a
// zap backend.
package logging

import (
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. Pretty mode uses zap's development
// console encoder; otherwise log lines are JSON.
func New(level string, pretty bool) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if pretty {
		zapConfig = zap.NewDevelopmentConfig()
	}

	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsedLevel)

	zlog, err := zapConfig.Build(zap.WithCaller(false))
	if err != nil {
		return nil, nil, err
	}

	logger := ectologger.NewEctoLogger(func(message ectologger.EctoLogMessage) {
		payload, err := json.Marshal(message)
		if err != nil {
			zlog.Error("failed to encode log message", zap.Error(err))
			return
		}
		zlog.Info(string(payload))
	})

	flush := func() {
		_ = zlog.Sync()
	}
	return logger, flush, nil
}
