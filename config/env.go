package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvLogLevel               = "CASCADE_LOG_LEVEL"
	EnvDataDir                = "CASCADE_DATA_DIR"
	EnvMaxConcurrentWorkflows = "CASCADE_MAX_CONCURRENT_WORKFLOWS"
	EnvDefaultStepTimeout     = "CASCADE_DEFAULT_STEP_TIMEOUT"
	EnvDefaultMaxRetries      = "CASCADE_DEFAULT_MAX_RETRIES"
)

// ApplyEnvOverrides overlays CASCADE_* environment variables onto the
// config. Environment values win over file values.
func ApplyEnvOverrides(config *Config) error {
	if value := os.Getenv(EnvLogLevel); value != "" {
		config.LogLevel = value
	}
	if value := os.Getenv(EnvDataDir); value != "" {
		config.DataDir = value
	}
	if value := os.Getenv(EnvMaxConcurrentWorkflows); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConcurrentWorkflows, err)
		}
		config.MaxConcurrentWorkflows = n
	}
	if value := os.Getenv(EnvDefaultStepTimeout); value != "" {
		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDefaultStepTimeout, err)
		}
		config.DefaultStepTimeout = seconds
	}
	if value := os.Getenv(EnvDefaultMaxRetries); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDefaultMaxRetries, err)
		}
		config.DefaultMaxRetries = &n
	}
	return nil
}
