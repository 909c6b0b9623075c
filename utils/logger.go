package utils

import "go.uber.org/zap"

// NewLogger returns a development logger for APP_ENV=development and a
// production JSON logger otherwise.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg != nil && cfg.Env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
