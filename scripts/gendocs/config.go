package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlstage/internal/config"
)

// ConfigField describes one key of sqlstage.yaml.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Target      bool
}

// getConfigSchema mirrors config.Config and config.TargetConfig.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "output", Type: "string", Default: config.DefaultOutput, Description: "Result format: table, json, csv, md"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Log composed SQL and cache activity"},
		{Name: "history_file", Type: "string", Default: "~/.sqlstage_history", Description: "Shell history file, relative to the config file"},
		{Name: "environment", Type: "string", Description: "Entry of environments applied by default"},
		{Name: "environments", Type: "map", Description: "Named target overrides selected with --target"},

		{Name: "type", Type: "string", Default: config.DefaultTargetType, Description: "Database type: duckdb, postgres, sqlite, mysql", Target: true},
		{Name: "database", Type: "string", Default: config.DefaultDatabase, Description: "File path (DuckDB, SQLite) or database name", Target: true},
		{Name: "host", Type: "string", Description: "Database host", Target: true},
		{Name: "port", Type: "int", Default: "5432 / 3306", Description: "Database port (PostgreSQL / MySQL)", Target: true},
		{Name: "user", Type: "string", Description: "Database username; ${VAR} is expanded", Target: true},
		{Name: "password", Type: "string", Description: "Database password; ${VAR} is expanded", Target: true},
		{Name: "schema", Type: "string", Description: "Search path schema (PostgreSQL)", Target: true},
		{Name: "options", Type: "map[string]string", Description: "Additional driver-specific options", Target: true},
		{Name: "params", Type: "map[string]any", Description: "DuckDB extensions, settings and secrets", Target: true},
	}
}

// generateConfigDocs writes configuration.md to outDir.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "sqlstage configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("sqlstage reads `%s` (or `%s`) from the working directory or the nearest parent directory. "+
		"Values are overridden by `%s*` environment variables and then by command-line flags.",
		config.ConfigFileName, config.ConfigFileNameAlt, config.EnvPrefix))

	var general, target [][]string
	for _, f := range getConfigSchema() {
		defVal := "-"
		if f.Default != "" {
			defVal = InlineCode(f.Default)
		}
		row := []string{InlineCode(f.Name), f.Type, defVal, f.Description}
		if f.Target {
			target = append(target, row)
		} else {
			general = append(general, row)
		}
	}

	headers := []string{"Field", "Type", "Default", "Description"}
	w.Header(2, "General")
	w.Table(headers, general)

	w.Header(2, "Target")
	w.Paragraph("Connection settings live under `target`. Entries of `environments` may override any of them.")
	w.Table(headers, target)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `output: table
target:
  type: duckdb
  database: local.duckdb
  params:
    extensions: [httpfs]
environments:
  prod:
    target:
      type: postgres
      host: db.internal
      user: analyst
      password: ${PG_PASSWORD}
      database: warehouse`)

	w.Header(2, "Environment Variables")
	w.Paragraph(fmt.Sprintf("Keys map to upper case with the `%s` prefix; nested keys use a double underscore, "+
		"for example `%sOUTPUT=csv` or `%sTARGET__TYPE=sqlite`.", config.EnvPrefix, config.EnvPrefix, config.EnvPrefix))

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
