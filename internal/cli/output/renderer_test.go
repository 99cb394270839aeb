package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlstage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *core.Result {
	return &core.Result{
		Columns: []core.Column{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}},
		Rows: [][]any{
			{int64(1), "alice"},
			{int64(2), nil},
		},
	}
}

func TestRenderer_Result(t *testing.T) {
	tests := []struct {
		format   string
		contains []string
	}{
		{format: "table", contains: []string{"id", "name", "alice", "NULL", "(2 rows)"}},
		{format: "", contains: []string{"alice", "(2 rows)"}},
		{format: "csv", contains: []string{"id,name", "1,alice", "2,NULL"}},
		{format: "md", contains: []string{"| id | name |", "| 1 | alice |"}},
		{format: "markdown", contains: []string{"| 2 | NULL |"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var out bytes.Buffer
			r := NewRendererWithTTY(&out, &bytes.Buffer{}, tt.format, false)
			require.NoError(t, r.Result(sampleResult()))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRenderer_ResultJSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, "json", false)
	require.NoError(t, r.Result(sampleResult()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0]["name"])
	assert.Equal(t, float64(2), got[1]["id"])
	assert.Nil(t, got[1]["name"])
}

func TestRenderer_EmptyResult(t *testing.T) {
	for _, format := range []string{"table", "md"} {
		var out bytes.Buffer
		r := NewRendererWithTTY(&out, &bytes.Buffer{}, format, false)
		require.NoError(t, r.Result(nil))
		assert.Equal(t, "(0 rows)\n", out.String())
	}

	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, "json", false)
	require.NoError(t, r.Result(&core.Result{}))
	assert.Equal(t, "[]\n", out.String())
}

func TestRenderer_StatusGoesToErrOut(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, "table", false)

	r.Success("loaded")
	r.Error("boom")
	r.Muted("hint")

	assert.Empty(t, out.String())
	assert.Equal(t, "✓ loaded\nError: boom\nhint\n", errOut.String())
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "2024-05-01T12:00:00Z", FormatValue(ts))
	assert.Equal(t, "raw", FormatValue([]byte("raw")))
	assert.Equal(t, "true", FormatValue(true))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
