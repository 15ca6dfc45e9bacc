// Package config holds the broker's tunable timings and the logger factory
// built from them, the same split of concerns as the teacher's pkg/config.
package config

import (
	"time"

	defaults "github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Config holds the broker's runtime configuration. Durations carry
// go-defaults tags so a zero-value Config (as produced by flag parsing or
// JSON unmarshal of a partial document) still has sane timings once
// ApplyDefaults runs.
type Config struct {
	LogLevel logrus.Level `json:"log_level"`

	// DiscoveryWindow is how long RequestDevice scans before it enumerates
	// the discovered devices.
	DiscoveryWindow time.Duration `json:"discovery_window" default:"1500000000"`

	// ConnectionPollInterval is how often a connect/disconnect transaction
	// re-checks IsConnected while waiting for the adapter to settle.
	ConnectionPollInterval time.Duration `json:"connection_poll_interval" default:"1000000000"`

	// TransactionTimeout bounds a single connect/disconnect transaction.
	TransactionTimeout time.Duration `json:"transaction_timeout" default:"30000000000"`
}

// DefaultConfig returns a Config with every field set to its documented
// default.
func DefaultConfig() *Config {
	c := &Config{LogLevel: logrus.InfoLevel}
	defaults.SetDefaults(c)
	return c
}

// ApplyDefaults fills any zero-valued duration field on an already
// constructed Config, leaving explicitly set fields untouched.
func ApplyDefaults(c *Config) {
	defaults.SetDefaults(c)
}

// NewLogger builds a logrus.Logger at the configured level, using the same
// full-timestamp text formatter the teacher's CLI logs with.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
