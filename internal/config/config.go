package config

import (
	"os"
	"strconv"

	"gotabs/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Checkpoint CheckpointConfig
	Logging    LoggingConfig
	Run        RunConfig
}

// CheckpointConfig selects and parameterizes the checkpoint store
type CheckpointConfig struct {
	Driver      string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string
}

// LoggingConfig holds diagnostic logging settings
type LoggingConfig struct {
	Verbose bool
	Dir     string
}

// RunConfig holds execution settings
type RunConfig struct {
	Parallelism int // 0 or 1 = sequential
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Checkpoint: loadCheckpointConfig(),
		Logging:    loadLoggingConfig(),
		Run:        loadRunConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		Driver:      getEnvOrDefault("GOTABS_CHECKPOINT_DRIVER", "sqlite"),
		SQLitePath:  getEnvOrDefault("GOTABS_CHECKPOINT_PATH", "gotabs-checkpoints.db"),
		PostgresURL: getEnvOrDefault("DATABASE_URL", ""),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Verbose: getEnvBoolOrDefault("GOTABS_VERBOSE", false),
		Dir:     getEnvOrDefault("GOTABS_LOGS_DIR", ""),
	}
}

func loadRunConfig() RunConfig {
	return RunConfig{
		Parallelism: getEnvIntOrDefault("GOTABS_PARALLELISM", 1),
	}
}

func validateConfig(config *Config) error {
	switch config.Checkpoint.Driver {
	case "sqlite":
		if config.Checkpoint.SQLitePath == "" {
			return errors.ConfigInvalid("GOTABS_CHECKPOINT_PATH is required for the sqlite driver")
		}
	case "postgres":
		if config.Checkpoint.PostgresURL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the postgres driver")
		}
	default:
		return errors.ConfigInvalid("GOTABS_CHECKPOINT_DRIVER must be sqlite or postgres")
	}
	if config.Run.Parallelism < 0 {
		return errors.ConfigInvalid("GOTABS_PARALLELISM cannot be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
