// Package config provides the configuration model for tapcore.
//
// A Config is loaded once at process start (typically by the CLI through
// viper), validated, and passed read-only by pointer to every component at
// construction. Components never reach for global configuration.
package config

import (
	"fmt"
	"time"
)

// Config describes a single extraction source: the database file to read and
// the logical database name stamped onto every discovered catalog entry and
// qualified name. It is immutable after Validate.
type Config struct {
	// Path is the filesystem path to the database file (required).
	Path string `mapstructure:"path" yaml:"path" json:"path"`

	// Database is the logical database name stamped onto discovered
	// entries and qualified names (required).
	Database string `mapstructure:"database" yaml:"database" json:"database"`

	// Separator joins qualified-name parts. Defaults to ".".
	Separator string `mapstructure:"separator" yaml:"separator" json:"separator"`

	// BatchSize is the record count between cancellation checks while
	// streaming rows.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`

	// Checkpoint controls how often stream state is flushed.
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
}

// CheckpointConfig contains checkpoint cadence settings. A checkpoint is
// taken when either threshold is crossed, whichever comes first.
type CheckpointConfig struct {
	// Records is the number of records between checkpoints.
	Records int `mapstructure:"records" yaml:"records" json:"records"`
	// Interval is the wall-clock duration between checkpoints.
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

// New creates a Config for the given database file with default cadence
// settings.
func New(path, database string) *Config {
	return &Config{
		Path:      path,
		Database:  database,
		Separator: ".",
		BatchSize: 1000,
		Checkpoint: CheckpointConfig{
			Records:  10000,
			Interval: 30 * time.Second,
		},
	}
}

// Validate validates the configuration for correctness. It checks required
// fields and ensures values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Separator == "" {
		return fmt.Errorf("separator is required")
	}
	if len(c.Separator) != 1 {
		return fmt.Errorf("separator must be a single character, got %q", c.Separator)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.Checkpoint.Records <= 0 {
		return fmt.Errorf("checkpoint.records must be positive")
	}
	if c.Checkpoint.Interval <= 0 {
		return fmt.Errorf("checkpoint.interval must be positive")
	}
	return nil
}
