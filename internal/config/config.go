// Package config loads the canonry YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all canonry configuration.
type Config struct {
	// SQLite database path.
	DatabasePath string `yaml:"database_path"`

	// Directory holding per-entity-type rule files ({entity_type}.yml).
	RulesDir string `yaml:"rules_dir"`

	// Lineage thresholds, percent.
	Lineage LineageConfig `yaml:"lineage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LineageConfig configures coverage thresholds.
type LineageConfig struct {
	ReportThresholdPct float64 `yaml:"report_threshold_pct"`
	PurgeThresholdPct  float64 `yaml:"purge_threshold_pct"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "canonry.db",
		RulesDir:     "config/resolution_rules",
		Lineage: LineageConfig{
			ReportThresholdPct: 90.0,
			PurgeThresholdPct:  95.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CANONRY_DB"); path != "" {
		c.DatabasePath = path
	}
	if dir := os.Getenv("CANONRY_RULES_DIR"); dir != "" {
		c.RulesDir = dir
	}
}
