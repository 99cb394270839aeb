package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leapstack-labs/sqlstage/pkg/adapter"
	"github.com/stretchr/testify/assert"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "schema becomes search_path",
			config: adapter.Config{
				Database: "sandbox",
				Username: "deploy",
				Schema:   "uber",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=localhost port=5432 dbname=sandbox sslmode=require user=deploy options='-c search_path=uber'",
		},
		{
			name: "public schema is implicit",
			config: adapter.Config{
				Database: "mydb",
				Schema:   "public",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"name", "name"},
		{"my column", "my_column"},
		{"user", `"user"`},
		{"order", `"order"`},
		{"my-field", "my_field"},
		{"count(x)", `"count(x)"`},
		{"UPPERCASE", "UPPERCASE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeIdentifier(tt.input))
		})
	}
}

func TestNewCSVLoad(t *testing.T) {
	tests := []struct {
		name       string
		table      string
		wantDrop   string
		wantCreate string
		wantCopy   string
	}{
		{
			name:       "plain name",
			table:      "trips",
			wantDrop:   `DROP TABLE IF EXISTS "trips" CASCADE`,
			wantCreate: `CREATE TABLE "trips" (trip_date TEXT, rider_id TEXT, "user" TEXT)`,
			wantCopy:   `COPY "trips" FROM STDIN WITH (FORMAT csv, HEADER true)`,
		},
		{
			name:       "name needing quotes",
			table:      `trips; DROP TABLE riders; --"`,
			wantDrop:   `DROP TABLE IF EXISTS "trips; DROP TABLE riders; --""" CASCADE`,
			wantCreate: `CREATE TABLE "trips; DROP TABLE riders; --""" (trip_date TEXT, rider_id TEXT, "user" TEXT)`,
			wantCopy:   `COPY "trips; DROP TABLE riders; --""" FROM STDIN WITH (FORMAT csv, HEADER true)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			load := newCSVLoad(tt.table, []string{"trip_date", "rider id", "user"})
			assert.Equal(t, tt.wantDrop, load.drop)
			assert.Equal(t, tt.wantCreate, load.create)
			assert.Equal(t, tt.wantCopy, load.copy)
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server error", &pgconn.PgError{Code: "42P01", Message: `relation "a" does not exist`}, "42P01"},
		{"wrapped server error", fmt.Errorf("query: %w", &pgconn.PgError{Code: "42601"}), "42601"},
		{"client error", errors.New("dial tcp: connection refused"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp)
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.DialectName())

	var _ adapter.Adapter = adp
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	_, err := adp.Execute(ctx, "SELECT 1")
	assert.ErrorContains(t, err, "database connection not established")
	assert.ErrorContains(t, adp.LoadCSV(ctx, "t", "x.csv"), "database connection not established")
}
