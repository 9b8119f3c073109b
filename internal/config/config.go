// Package config loads microact settings from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by every command. Command-line flags
// override these values.
type Config struct {
	DB          string     `env:"MICROACT_DB"          envDefault:"microact.db"`
	Format      string     `env:"MICROACT_FORMAT"      envDefault:"text"`
	LogLevel    slog.Level `env:"MICROACT_LOG_LEVEL"   envDefault:"warn"`
	MaxDepth    int        `env:"MICROACT_MAX_DEPTH"   envDefault:"64"`
	Concurrency int        `env:"MICROACT_CONCURRENCY" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that the environment parser cannot.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("MICROACT_FORMAT: must be text or json, got %q", c.Format)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("MICROACT_MAX_DEPTH: must be non-negative, got %d", c.MaxDepth)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("MICROACT_CONCURRENCY: must be non-negative, got %d", c.Concurrency)
	}
	return nil
}
