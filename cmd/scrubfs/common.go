package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/arrowheadlabs/scrubfs/internal/configuration"
	"github.com/arrowheadlabs/scrubfs/internal/logging"
)

// loadConfiguration loads and validates the layered configuration named by
// the repeated --config flags.
func loadConfiguration() (*configuration.Configuration, error) {
	if len(rootConfiguration.configPaths) == 0 {
		return nil, errors.New("at least one --config file is required")
	}
	return configuration.Load(rootConfiguration.configPaths)
}

// newLogger constructs the root logger for the resolved configuration,
// with --debug overriding the configured level to debug.
func newLogger(cfg *configuration.Configuration) *logging.Logger {
	level, ok := logging.NameToLevel(cfg.Logging.Level)
	if !ok {
		level = logging.LevelInfo
	}
	if rootConfiguration.debug {
		level = logging.LevelDebug
	}
	return logging.NewRoot(level)
}

// hoursToDuration converts the fractional-hours configuration value into a
// time.Duration.
func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
