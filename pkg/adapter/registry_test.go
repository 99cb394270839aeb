package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/sqlstage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	BaseSQLAdapter
}

func (s *stubAdapter) Connect(_ context.Context, _ Config) error { return nil }

func (s *stubAdapter) LoadCSV(_ context.Context, _, _ string) error { return nil }

func (s *stubAdapter) DialectName() string { return "stub" }

func (s *stubAdapter) Execute(_ context.Context, _ string) (*core.Result, error) { return nil, nil }

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()

	assert.NotEmpty(t, msg, "error message should not be empty")
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type 'fake_db'")
	assert.Contains(t, msg, "sqlstage.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return &stubAdapter{} })

	assert.True(t, IsRegistered("test_adapter_internal"), "test_adapter_internal should be registered after Register()")

	factory, ok := Get("test_adapter_internal")
	assert.True(t, ok, "Get(test_adapter_internal) should return true after Register()")
	assert.NotNil(t, factory, "Get(test_adapter_internal) should return non-nil factory")
	assert.Contains(t, ListAdapters(), "test_adapter_internal")
}

func TestNewAdapter(t *testing.T) {
	Register("test_adapter_new", func(_ *slog.Logger) Adapter { return &stubAdapter{} })

	tests := []struct {
		name      string
		cfgType   string
		errSubstr string
	}{
		{name: "empty type", cfgType: "", errSubstr: "adapter type not specified"},
		{name: "unknown type", cfgType: "oracle", errSubstr: "unknown adapter type"},
		{name: "registered type", cfgType: "test_adapter_new"},
		{name: "registered type is case-insensitive", cfgType: "TEST_ADAPTER_NEW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAdapter(Config{Type: tt.cfgType}, nil)
			if tt.errSubstr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "stub", a.DialectName())
		})
	}
}
