// Package config reads relay configuration files.
package config

import (
	"github.com/pkg/errors"

	"go.viam.com/graspable/logging"
	"go.viam.com/graspable/services/graspable"
)

// Config is a processed relay configuration.
type Config struct {
	ConfigFilePath string
	LogLevel       logging.Level
	MetricsAddr    string
	Graspable      *graspable.Config
}

// fileConfig is the on-disk layout. Graspable attributes are decoded in a second pass so that
// unknown keys and string durations can be handled.
type fileConfig struct {
	LogLevel    string                 `json:"log_level,omitempty"`
	MetricsAddr string                 `json:"metrics_addr,omitempty"`
	Graspable   map[string]interface{} `json:"graspable"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if c.Graspable == nil {
		return errors.New("graspable section is required")
	}
	return c.Graspable.Validate("graspable")
}
