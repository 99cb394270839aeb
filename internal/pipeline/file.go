// Package pipeline reads staged query pipelines from YAML files and applies
// them incrementally to a stage cache.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a parsed pipeline file.
type File struct {
	// Path is the file the pipeline was loaded from, empty when parsed
	// from bytes.
	Path string `yaml:"-"`
	// Seeds maps table names to CSV files loaded before any stage runs.
	Seeds map[string]string `yaml:"seeds"`
	// Stages run in order, each able to reference every earlier stage.
	Stages []Stage `yaml:"stages"`
}

// Stage is one named SQL fragment of a pipeline.
type Stage struct {
	Name    string   `yaml:"name"`
	SQL     string   `yaml:"sql"`
	OrderBy []string `yaml:"order_by"`
}

// Equal reports whether two stages would compose the same statement.
func (s Stage) Equal(o Stage) bool {
	return s.Name == o.Name && s.SQL == o.SQL && slices.Equal(s.OrderBy, o.OrderBy)
}

// ParseError is returned for malformed or invalid pipeline files.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "pipeline: " + e.Message
	}
	return fmt.Sprintf("pipeline %s: %s", e.Path, e.Message)
}

// Load reads and validates the pipeline at path. Relative seed paths are
// resolved against the directory containing the file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}

	f.Path = path
	dir := filepath.Dir(path)
	for table, csv := range f.Seeds {
		if !filepath.IsAbs(csv) {
			f.Seeds[table] = filepath.Join(dir, csv)
		}
	}
	return f, nil
}

// Parse decodes and validates pipeline YAML. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	for i := range f.Stages {
		s := &f.Stages[i]
		s.Name = strings.TrimSpace(s.Name)
		s.SQL = TrimStatement(s.SQL)
		for j, col := range s.OrderBy {
			s.OrderBy[j] = strings.TrimSpace(col)
		}
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]int, len(f.Stages))
	for i, s := range f.Stages {
		if s.Name == "" {
			return &ParseError{Message: fmt.Sprintf("stage %d has no name", i+1)}
		}
		if prev, ok := seen[s.Name]; ok {
			return &ParseError{Message: fmt.Sprintf("stage %q defined twice (stages %d and %d)", s.Name, prev+1, i+1)}
		}
		seen[s.Name] = i
		if s.SQL == "" {
			return &ParseError{Message: fmt.Sprintf("stage %q has no sql", s.Name)}
		}
		if slices.Contains(s.OrderBy, "") {
			return &ParseError{Message: fmt.Sprintf("stage %q has an empty order_by entry", s.Name)}
		}
	}
	for table, csv := range f.Seeds {
		if strings.TrimSpace(table) == "" || strings.TrimSpace(csv) == "" {
			return &ParseError{Message: "seeds need both a table name and a CSV path"}
		}
	}
	return nil
}

// Names returns the stage names in order.
func (f *File) Names() []string {
	names := make([]string, len(f.Stages))
	for i, s := range f.Stages {
		names[i] = s.Name
	}
	return names
}

// TrimStatement strips surrounding whitespace and trailing semicolons, which
// would otherwise end the WITH clause early.
func TrimStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}
