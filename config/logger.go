package config

import (
	"go.uber.org/zap"
)

// Logger is the process-wide logger, set by InitLogger.
var Logger = zap.NewNop()

// NewLogger builds a zap logger from LogConfig.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

// InitLogger replaces Logger using AppConfig.Log. Falls back to a production logger.
func InitLogger() *zap.Logger {
	l, err := NewLogger(App().Log)
	if err != nil {
		l, _ = zap.NewProduction()
	}
	Logger = l
	zap.ReplaceGlobals(l)
	return l
}
