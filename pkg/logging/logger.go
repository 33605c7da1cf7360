// Package logging provides zap logger construction and log sanitization.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger for the given environment.
// "production" yields JSON output at info level; anything else yields
// development output at debug level.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}

// NopLogger returns a logger that discards everything. Components accept a
// *zap.Logger unconditionally; callers that don't care pass this.
func NopLogger() *zap.Logger {
	return zap.NewNop()
}
