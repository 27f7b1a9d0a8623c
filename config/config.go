package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Dataset DatasetConfig `mapstructure:"dataset"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// SandboxConfig holds execution engine configuration
type SandboxConfig struct {
	TimeoutMS          int    `mapstructure:"timeout_ms"`
	VisualizeTimeoutMS int    `mapstructure:"visualize_timeout_ms"`
	MemoryHeadroomMB   int    `mapstructure:"memory_headroom_mb"`
	OutputLimitChars   int    `mapstructure:"output_limit_chars"`
	MaxSteps           uint64 `mapstructure:"max_steps"`
	MaxAttempts        int    `mapstructure:"max_attempts"`
}

// DatasetConfig holds dataset loading configuration
type DatasetConfig struct {
	CSVPath          string   `mapstructure:"csv_path"`
	EngineerFeatures bool     `mapstructure:"engineer_features"`
	DropColumns      []string `mapstructure:"drop_columns"`
}

// New loads and validates the application configuration from config.yaml
// in the working directory or ./config, falling back to defaults when no
// file exists.
func New() (*Config, error) {
	return load("")
}

// NewFromFile loads and validates the configuration from an explicit path.
func NewFromFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Set default values
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("sandbox.timeout_ms", 5000)
	v.SetDefault("sandbox.visualize_timeout_ms", 10000)
	v.SetDefault("sandbox.memory_headroom_mb", 1024)
	v.SetDefault("sandbox.output_limit_chars", 100000)
	v.SetDefault("sandbox.max_steps", 0)
	v.SetDefault("sandbox.max_attempts", 3)

	v.SetDefault("dataset.csv_path", "data/titanic.csv")
	v.SetDefault("dataset.engineer_features", true)
	v.SetDefault("dataset.drop_columns", []string{"Cabin", "Ticket"})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.Transport == "http" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Logging.Mode != "development" && c.Logging.Mode != "production" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'development' or 'production'", c.Logging.Mode)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got: %d", c.Sandbox.TimeoutMS)
	}

	if c.Sandbox.VisualizeTimeoutMS <= 0 {
		return fmt.Errorf("sandbox.visualize_timeout_ms must be positive, got: %d", c.Sandbox.VisualizeTimeoutMS)
	}

	if c.Sandbox.MemoryHeadroomMB <= 0 {
		return fmt.Errorf("sandbox.memory_headroom_mb must be positive, got: %d", c.Sandbox.MemoryHeadroomMB)
	}

	if c.Sandbox.OutputLimitChars <= 0 {
		return fmt.Errorf("sandbox.output_limit_chars must be positive, got: %d", c.Sandbox.OutputLimitChars)
	}

	if c.Sandbox.MaxAttempts <= 0 {
		return fmt.Errorf("sandbox.max_attempts must be positive, got: %d", c.Sandbox.MaxAttempts)
	}

	if c.Dataset.CSVPath == "" {
		return fmt.Errorf("dataset.csv_path must not be empty")
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMS) * time.Millisecond
}

// GetVisualizeTimeout returns the visualization execution timeout as a
// duration. Chart snippets get a longer leash than plain queries.
func (c *Config) GetVisualizeTimeout() time.Duration {
	return time.Duration(c.Sandbox.VisualizeTimeoutMS) * time.Millisecond
}
