// Package sqlite provides a pure-Go SQLite database adapter for sqlstage.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/sqlstage/pkg/adapters/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlstage/pkg/adapter"
	"modernc.org/sqlite"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger, ErrorCode: errorCode},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "sqlite"
}

// Connect opens the database file at cfg.Path.
// An empty path or ":memory:" opens a private in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	// Every in-memory connection is a separate database.
	db.SetMaxOpenConns(1)

	a.DB = db
	a.Cfg = cfg
	return nil
}

// LoadCSV replaces tableName with the contents of a CSV file.
// All columns are created as TEXT.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if err := a.LoadCSVAsText(ctx, tableName, filePath, adapter.TextTable{
		Quote:       quoteIdentifier,
		Placeholder: func(int) string { return "?" },
	}); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// errorCode returns the SQLite extended result code.
func errorCode(err error) string {
	var sErr *sqlite.Error
	if errors.As(err, &sErr) {
		return strconv.Itoa(sErr.Code())
	}
	return ""
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
