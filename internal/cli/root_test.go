package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, _, err := run(t, "", "--help")
	require.NoError(t, err)
	for _, want := range []string{"run", "repl", "load", "version", "completion", "--target", "--output"} {
		assert.Contains(t, out, want)
	}
}

func TestRootCmd_Version(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlstage v"+Version)
}

func TestRootCmd_Completion(t *testing.T) {
	out, _, err := run(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlstage")

	_, _, err = run(t, "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestRootCmd_ScriptFromStdin(t *testing.T) {
	t.Chdir(t.TempDir())

	script := ".stage a\nSELECT 1 AS x;\n.stage b\nSELECT x + 1 AS y FROM a;\n.show b\n"
	out, errOut, err := run(t, script, "--type", "sqlite", "-o", "csv")
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "y\n2\n")
	assert.Contains(t, errOut, "stage b cached (1 rows)")
}

func TestRootCmd_VerboseLogsSQL(t *testing.T) {
	t.Chdir(t.TempDir())

	_, errOut, err := run(t, ".stage a\nSELECT 1 AS x;\n", "repl", "--type", "sqlite", "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "level=DEBUG")
	assert.Contains(t, errOut, "executing stage")
}

func TestRootCmd_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
output: json
target:
  type: sqlite
environments:
  broken:
    target:
      type: oracle
`), 0o600))

	out, _, err := run(t, "SELECT 7 AS n;\n", "repl", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"n": 7`)

	_, _, err = run(t, "", "repl", "--config", cfgPath, "--target", "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter type")
}

func TestRootCmd_RunPipeline(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	pipelinePath := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipelinePath, []byte(`
stages:
  - name: nums
    sql: SELECT 1 AS x UNION ALL SELECT 3 UNION ALL SELECT 2
    order_by: [x DESC]
`), 0o600))

	out, _, err := run(t, "", "run", pipelinePath, "--type", "sqlite", "-o", "csv")
	require.NoError(t, err)
	assert.Equal(t, "x\n3\n2\n1\n", out)
}

func TestRootCmd_FailingScriptExitsWithError(t *testing.T) {
	t.Chdir(t.TempDir())

	_, errOut, err := run(t, "SELECT * FROM missing;\n", "--type", "sqlite")
	require.Error(t, err)
	assert.Contains(t, errOut, "query failed")
}
