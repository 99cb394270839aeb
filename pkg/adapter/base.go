package adapter

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sqlstage/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, and Execute implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// ErrorCode extracts the driver-specific error classification.
	// Optional; a nil func leaves StoreError.Code empty.
	ErrorCode func(err error) string
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", b.storeError(sqlStr, err))
	}
	return nil
}

// Execute runs sqlStr on a dedicated connection inside a single transaction
// and materializes the result set. The connection and transaction are
// released on every path: commit on success, rollback on any failure.
// A statement without a result set yields a nil result.
func (b *BaseSQLAdapter) Execute(ctx context.Context, sqlStr string) (*core.Result, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, b.storeError(sqlStr, err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, b.storeError(sqlStr, err)
	}

	res, err := queryResult(ctx, tx, sqlStr)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && b.Logger != nil {
			b.Logger.Debug("rollback failed", slog.String("error", rbErr.Error()))
		}
		return nil, b.storeError(sqlStr, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, b.storeError(sqlStr, err)
	}
	return res, nil
}

func queryResult(ctx context.Context, tx *sql.Tx, sqlStr string) (*core.Result, error) {
	rows, err := tx.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		// DDL/DML without RETURNING
		return nil, rows.Err()
	}

	res := &core.Result{Columns: make([]core.Column, len(types))}
	for i, ct := range types {
		res.Columns[i] = core.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				values[i] = string(bs)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *BaseSQLAdapter) storeError(sqlStr string, err error) *core.StoreError {
	se := &core.StoreError{Message: err.Error(), SQL: sqlStr, Err: err}
	if b.ErrorCode != nil {
		se.Code = b.ErrorCode(err)
	}
	return se
}

// TextTable describes how a dialect spells a plain CSV load: every column
// is created as TEXT and rows are inserted in one transaction.
type TextTable struct {
	// Quote quotes an identifier when it needs quoting.
	Quote func(name string) string
	// Placeholder returns the bind placeholder for the 1-based position n.
	Placeholder func(n int) string
}

// LoadCSVAsText drops and recreates tableName with TEXT columns taken from
// the CSV header, then inserts every record. Used by adapters whose store has
// no native CSV reader.
func (b *BaseSQLAdapter) LoadCSVAsText(ctx context.Context, tableName, filePath string, tt TextTable) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(absPath) //nolint:gosec // path comes from the user's own pipeline or CLI args
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("CSV file %s has no header", filePath)
	}
	headers := records[0]

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tt.Quote(tableName))); err != nil {
		return fmt.Errorf("failed to drop table: %w", b.storeError("DROP TABLE", err))
	}

	colDefs := make([]string, len(headers))
	placeholders := make([]string, len(headers))
	for i, h := range headers {
		colDefs[i] = tt.Quote(SanitizeIdentifier(h)) + " TEXT"
		placeholders[i] = tt.Placeholder(i + 1)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", tt.Quote(tableName), strings.Join(colDefs, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", b.storeError(createSQL, err))
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", tt.Quote(tableName), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", b.storeError(insertSQL, err))
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records[1:] {
		args := make([]any, len(rec))
		for i, v := range rec {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", b.storeError(insertSQL, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load: %w", err)
	}

	if b.Logger != nil {
		b.Logger.Debug("loaded csv", slog.String("table", tableName), slog.Int("rows", len(records)-1))
	}
	return nil
}

// SanitizeIdentifier makes a CSV header usable as a column name.
func SanitizeIdentifier(name string) string {
	safe := strings.TrimSpace(name)
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.ReplaceAll(safe, "-", "_")
	return safe
}
