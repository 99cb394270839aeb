// Package config loads sqlstage configuration from defaults, sqlstage.yaml,
// SQLSTAGE_* environment variables and command-line flags.
package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlstage/pkg/adapter"
	"github.com/leapstack-labs/sqlstage/pkg/core"
)

// Output formats accepted by the output key.
const (
	OutputTable    = "table"
	OutputJSON     = "json"
	OutputCSV      = "csv"
	OutputMarkdown = "md"
)

var outputFormats = []string{OutputTable, OutputJSON, OutputCSV, OutputMarkdown}

// Config holds all CLI configuration options.
type Config struct {
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	HistoryFile  string               `koanf:"history_file"`
	Target       *TargetConfig        `koanf:"target"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// File is the config file that was loaded, empty if none was found.
	File string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides selected by
// environment or --target.
type EnvConfig struct {
	Target *TargetConfig `koanf:"target"`
}

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres, sqlite, mysql

	// File path for DuckDB and SQLite, database name otherwise.
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, secrets, settings)
	Params map[string]any `koanf:"params"`
}

// Validate checks the target against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the target into the configuration adapters connect with.
func (t *TargetConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     strings.ToLower(t.Type),
		Path:     t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  maps.Clone(t.Options),
		Params:   maps.Clone(t.Params),
	}
}

// IsFileBased reports whether Database names a local file.
func (t *TargetConfig) IsFileBased() bool {
	switch strings.ToLower(t.Type) {
	case "duckdb", "sqlite":
		return true
	}
	return false
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Target == nil {
		return fmt.Errorf("target is required")
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	if !slices.Contains(outputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(outputFormats, ", "))
	}
	return nil
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *TargetConfig) *TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	maps.Copy(merged.Options, base.Options)
	maps.Copy(merged.Params, base.Params)

	if override.Type != "" {
		merged.Type = override.Type
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != 0 {
		merged.Port = override.Port
	}
	if override.User != "" {
		merged.User = override.User
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Schema != "" {
		merged.Schema = override.Schema
	}

	maps.Copy(merged.Options, override.Options)
	maps.Copy(merged.Params, override.Params)
	return &merged
}
