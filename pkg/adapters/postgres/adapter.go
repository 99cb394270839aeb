package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/sqlstage/pkg/adapter"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
// cfg.Schema, when set, becomes the session search_path.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	if cfg.Schema != "" && cfg.Schema != "public" {
		dsn += fmt.Sprintf(" options='-c search_path=%s'", cfg.Schema)
	}

	return dsn
}

// LoadCSV replaces tableName with the contents of a CSV file using
// COPY FROM STDIN. All columns are created as TEXT. Drop, create and copy
// run in one transaction on one connection.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(absPath) //nolint:gosec // absPath is derived from user-provided filePath, which is expected
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgConn := driverConn.(*stdlib.Conn).Conn().PgConn()

		load := newCSVLoad(tableName, headers)
		stmts := []string{"BEGIN", load.drop, load.create}
		for _, stmt := range stmts {
			if err := pgConn.Exec(ctx, stmt).Close(); err != nil {
				_ = pgConn.Exec(ctx, "ROLLBACK").Close()
				return fmt.Errorf("failed to prepare table: %w", err)
			}
		}

		tag, err := pgConn.CopyFrom(ctx, file, load.copy)
		if err != nil {
			_ = pgConn.Exec(ctx, "ROLLBACK").Close()
			return fmt.Errorf("failed to copy data: %w", err)
		}

		if err := pgConn.Exec(ctx, "COMMIT").Close(); err != nil {
			return fmt.Errorf("failed to commit load: %w", err)
		}

		a.Logger.Debug("loaded csv", slog.String("table", tableName), slog.Int64("rows", tag.RowsAffected()))
		return nil
	})
}

// csvLoad holds the statements that replace a table with a CSV file.
type csvLoad struct {
	drop   string
	create string
	copy   string
}

// newCSVLoad builds the load statements for tableName, quoting it as a
// single identifier and creating one TEXT column per header.
func newCSVLoad(tableName string, headers []string) csvLoad {
	table := pgx.Identifier{tableName}.Sanitize()
	colDefs := make([]string, len(headers))
	for i, col := range headers {
		colDefs[i] = sanitizeIdentifier(col) + " TEXT"
	}
	return csvLoad{
		drop:   fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table),
		create: fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(colDefs, ", ")),
		copy:   fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", table),
	}
}

// errorCode returns the SQLSTATE of a server-side error.
func errorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// sanitizeIdentifier makes a column name safe for SQL.
func sanitizeIdentifier(name string) string {
	safe := adapter.SanitizeIdentifier(name)
	// Quote if it contains special chars or is a reserved word
	if strings.ContainsAny(safe, "()[]{}") || isReservedWord(safe) {
		return fmt.Sprintf(`"%s"`, safe)
	}
	return safe
}

// isReservedWord checks if a name is a PostgreSQL reserved word.
func isReservedWord(name string) bool {
	reserved := map[string]bool{
		"user": true, "order": true, "group": true, "table": true,
		"select": true, "from": true, "where": true, "index": true,
	}
	return reserved[strings.ToLower(name)]
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
