// Package adapter provides database adapter interfaces and the shared
// database/sql implementation used by every sqlstage store.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"

	"github.com/leapstack-labs/sqlstage/pkg/core"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Executor runs one SQL statement and returns its tabular result.
// A nil result with a nil error means the statement produced no result set.
// Failures are reported as *core.StoreError.
type Executor interface {
	Execute(ctx context.Context, sql string) (*core.Result, error)
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	Executor

	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// LoadCSV loads data from a CSV file into a table, replacing any
	// existing table of the same name.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	// DialectName returns the SQL dialect spoken by this adapter.
	DialectName() string
}
