package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    []Stage
		wantErr string
	}{
		{
			name: "stages with order by",
			yaml: `
stages:
  - name: a
    sql: SELECT 1 AS x
  - name: b
    sql: |
      SELECT x + 1 AS y
      FROM a;
    order_by: [y DESC]
`,
			want: []Stage{
				{Name: "a", SQL: "SELECT 1 AS x"},
				{Name: "b", SQL: "SELECT x + 1 AS y\nFROM a", OrderBy: []string{"y DESC"}},
			},
		},
		{
			name: "empty document",
			yaml: "",
		},
		{
			name:    "missing name",
			yaml:    "stages:\n  - sql: SELECT 1\n",
			wantErr: "stage 1 has no name",
		},
		{
			name:    "duplicate name",
			yaml:    "stages:\n  - {name: a, sql: SELECT 1}\n  - {name: a, sql: SELECT 2}\n",
			wantErr: `stage "a" defined twice (stages 1 and 2)`,
		},
		{
			name:    "missing sql",
			yaml:    "stages:\n  - name: a\n    sql: ' ; '\n",
			wantErr: `stage "a" has no sql`,
		},
		{
			name:    "empty order by entry",
			yaml:    "stages:\n  - {name: a, sql: SELECT 1, order_by: ['']}\n",
			wantErr: "empty order_by entry",
		},
		{
			name:    "unknown field",
			yaml:    "stages:\n  - {name: a, sql: SELECT 1, materialized: table}\n",
			wantErr: "invalid YAML",
		},
		{
			name:    "seed without path",
			yaml:    "seeds:\n  trips: ''\n",
			wantErr: "seeds need both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				var pe *ParseError
				assert.ErrorAs(t, err, &pe)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Stages)
		})
	}
}

func TestLoad_ResolvesSeedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	abs := filepath.Join(dir, "elsewhere", "other.csv")
	content := "seeds:\n  trips: data/trips.csv\n  other: " + abs + "\nstages:\n  - {name: a, sql: SELECT 1}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Equal(t, filepath.Join(dir, "data", "trips.csv"), f.Seeds["trips"])
	assert.Equal(t, abs, f.Seeds["other"])
	assert.Equal(t, []string{"a"}, f.Names())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stages:\n  - sql: SELECT 1\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestStage_Equal(t *testing.T) {
	base := Stage{Name: "a", SQL: "SELECT 1", OrderBy: []string{"x"}}

	assert.True(t, base.Equal(Stage{Name: "a", SQL: "SELECT 1", OrderBy: []string{"x"}}))
	assert.False(t, base.Equal(Stage{Name: "b", SQL: "SELECT 1", OrderBy: []string{"x"}}))
	assert.False(t, base.Equal(Stage{Name: "a", SQL: "SELECT 2", OrderBy: []string{"x"}}))
	assert.False(t, base.Equal(Stage{Name: "a", SQL: "SELECT 1"}))
}
