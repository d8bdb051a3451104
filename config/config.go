// Package config loads the application configuration from an optional YAML
// file with environment-variable overrides (prefix FUNDING, dots become
// underscores, e.g. FUNDING_DATABASE_HOST).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// SourceConfig selects where the event table is loaded from.
type SourceConfig struct {
	Kind    string `mapstructure:"kind"`
	CSVPath string `mapstructure:"csv_path"`
}

// DefaultsConfig holds the selection defaults surfaced to callers.
type DefaultsConfig struct {
	Asset string `mapstructure:"asset"`
	Year  int    `mapstructure:"year"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file, falling back to built-in
// defaults when the file does not exist. Environment variables override
// both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("FUNDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "funding")

	v.SetDefault("source.kind", "csv")
	v.SetDefault("source.csv_path", "data/funding_rate.csv.gz")

	v.SetDefault("defaults.asset", "BTC")
	v.SetDefault("defaults.year", 2025)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Source.Kind != "csv" && c.Source.Kind != "database" {
		return fmt.Errorf("source.kind must be csv or database, got %q", c.Source.Kind)
	}
	if c.Source.Kind == "csv" && c.Source.CSVPath == "" {
		return fmt.Errorf("source.csv_path is required for the csv source")
	}
	if c.Defaults.Asset == "" {
		return fmt.Errorf("defaults.asset is required")
	}
	if c.Defaults.Year < 1970 || c.Defaults.Year > 2100 {
		return fmt.Errorf("defaults.year %d is out of range", c.Defaults.Year)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json")
	}
	return nil
}
