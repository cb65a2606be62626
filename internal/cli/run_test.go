package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeContext(ctx context.Context, args ...string) (string, string, error) {
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()

	_, _, err := execute(t, "run",
		"--db", filepath.Join(dir, "shadow.db"),
		"--chain", "nope",
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown chain "nope"`)
}

func TestRun_InvalidContracts(t *testing.T) {
	contractsPath := writeFile(t, "shadow.json", `{"0x1234": "0x00"}`)

	_, _, err := execute(t, "run",
		"--db", filepath.Join(t.TempDir(), "shadow.db"),
		"--contracts", contractsPath,
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid contracts file")
}

func TestRun_ServeOnlyStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shadow.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stderr, err := executeContext(ctx, "run",
		"--db", db,
		"--contracts", filepath.Join(dir, "shadow.json"),
		"--http-addr", "127.0.0.1:0",
	)
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving the existing database only")
	assert.FileExists(t, db)
}
