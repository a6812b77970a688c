// Package config provides YAML-based pipeline configuration with an
// embedded default.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var embeddedConfig []byte

// StoreDriver selects the persistence backend.
type StoreDriver string

const (
	// DriverSQLite persists to a local SQLite database file.
	DriverSQLite StoreDriver = "sqlite"
	// DriverFirestore persists to Google Cloud Firestore.
	DriverFirestore StoreDriver = "firestore"
	// DriverNone disables persistence; results are only written to output.
	DriverNone StoreDriver = "none"
)

// ValidationConfig controls row validation.
type ValidationConfig struct {
	RequiredColumns     []string `yaml:"required_columns"`
	BreakdownRatioLimit float64  `yaml:"breakdown_ratio_limit"`
}

// AliasConfig lists accepted header spellings for each logical column.
type AliasConfig struct {
	ID     []string `yaml:"id"`
	Name   []string `yaml:"name"`
	Period []string `yaml:"period"`
	Amount []string `yaml:"amount"`
}

// PeriodConfig bounds the years considered plausible for period parsing.
type PeriodConfig struct {
	MinYear int `yaml:"min_year"`
	MaxYear int `yaml:"max_year"`
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	Driver  StoreDriver `yaml:"driver"`
	Path    string      `yaml:"path"`
	Project string      `yaml:"project"`
}

// Config is the top-level YAML structure.
//
// Instances should be created via Load, LoadFromFile, or Default, all of
// which validate every field. Direct struct construction bypasses
// validation.
type Config struct {
	Validation ValidationConfig `yaml:"validation"`
	Aliases    AliasConfig      `yaml:"aliases"`
	Periods    PeriodConfig     `yaml:"periods"`
	Store      StoreConfig      `yaml:"store"`
}

// Load parses and validates a configuration from YAML data.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config (check syntax, indentation, and field names): %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	cfg, err := Load(embeddedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded config (possible binary corruption): %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads a configuration from a filesystem path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, col := range c.Validation.RequiredColumns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("validation.required_columns[%d]: column name cannot be empty", i)
		}
	}
	if c.Validation.BreakdownRatioLimit < 0 {
		return fmt.Errorf("validation.breakdown_ratio_limit must be >= 0, got %f", c.Validation.BreakdownRatioLimit)
	}

	if c.Periods.MinYear != 0 || c.Periods.MaxYear != 0 {
		if c.Periods.MinYear < 1900 || c.Periods.MinYear > 2200 {
			return fmt.Errorf("periods.min_year must be in [1900,2200], got %d", c.Periods.MinYear)
		}
		if c.Periods.MaxYear < c.Periods.MinYear {
			return fmt.Errorf("periods.max_year (%d) must not precede periods.min_year (%d)", c.Periods.MaxYear, c.Periods.MinYear)
		}
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverFirestore, DriverNone, "":
	default:
		return fmt.Errorf("store.driver must be one of 'sqlite', 'firestore', 'none', got %q", c.Store.Driver)
	}
	if c.Store.Driver == DriverFirestore && strings.TrimSpace(c.Store.Project) == "" {
		return fmt.Errorf("store.driver 'firestore' requires store.project")
	}

	return nil
}
