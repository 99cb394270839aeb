package config

import "strings"

// Default configuration values.
const (
	DefaultTargetType = "duckdb"
	DefaultDatabase   = ":memory:"
	DefaultOutput     = OutputTable

	// ConfigFileName is the name of the config file.
	ConfigFileName = "sqlstage.yaml"
	// ConfigFileNameAlt is the alternate name of the config file.
	ConfigFileNameAlt = "sqlstage.yml"

	// EnvPrefix prefixes environment variables read as configuration.
	EnvPrefix = "SQLSTAGE_"
)

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	t.Type = strings.ToLower(t.Type)

	switch t.Type {
	case "duckdb", "sqlite":
		if t.Database == "" {
			t.Database = DefaultDatabase
		}
	case "postgres":
		if t.Port == 0 {
			t.Port = 5432
		}
		if t.Schema == "" {
			t.Schema = "public"
		}
	case "mysql":
		if t.Port == 0 {
			t.Port = 3306
		}
	}
}
