package replshell_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunholo/savervm/internal/config"
	"github.com/sunholo/savervm/internal/replshell"
)

func writeProgram(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.json")
	contents := `[
		{"label": 0, "opcodes": [
			{"tag": 2}, {"tag": 5}, {"tag": 17, "operands": [0]},
			{"tag": 27, "operands": [42]}, {"tag": 29}
		]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newShell() *replshell.Shell {
	cfg := config.Default()
	cfg.ColorOutput = false
	return replshell.New(cfg, "test")
}

func TestShellLoadVerifySigSession(t *testing.T) {
	path := writeProgram(t)
	shell := newShell()

	var out bytes.Buffer
	shell.RunCommand(":load "+path, &out)
	shell.RunCommand(":verify", &out)
	shell.RunCommand(":sig 0", &out)

	output := out.String()
	assert.Contains(t, output, "loaded 1 function")
	assert.Contains(t, output, "PASS")
	assert.Contains(t, output, "label 0:")
}

func TestShellVerifyWithoutLoadReportsError(t *testing.T) {
	shell := newShell()
	var out bytes.Buffer
	shell.RunCommand(":verify", &out)
	assert.Contains(t, out.String(), "no program loaded")
}

func TestShellUnknownCommand(t *testing.T) {
	shell := newShell()
	var out bytes.Buffer
	shell.RunCommand(":bogus", &out)
	assert.Contains(t, out.String(), "unknown command")
}

func TestShellErrorsAfterFailedVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"label": 0, "opcodes": [{"tag": 2}]}]`), 0o644))

	shell := newShell()
	var out bytes.Buffer
	shell.RunCommand(":load "+path, &out)
	shell.RunCommand(":verify", &out)
	out.Reset()
	shell.RunCommand(":errors", &out)
	assert.Contains(t, out.String(), "last failure")
}
