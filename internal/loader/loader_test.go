package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/savervm/internal/loader"
	"github.com/sunholo/savervm/internal/opcode"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadProgramParsesTagsAndOperands(t *testing.T) {
	path := writeTemp(t, `[
		{
			"label": 0,
			"opcodes": [
				{"tag": 2},
				{"tag": 5},
				{"tag": 17, "operands": [0]},
				{"tag": 27, "operands": [42]},
				{"tag": 29}
			]
		}
	]`)

	pool, statements, err := loader.LoadProgram(path)
	require.NoError(t, err)
	assert.NotNil(t, pool)
	require.Len(t, statements, 1)
	require.Len(t, statements[0].Opcodes, 5)
	assert.Equal(t, opcode.Heap, statements[0].Opcodes[0].Tag)
	assert.Equal(t, opcode.Func, statements[0].Opcodes[2].Tag)
	assert.Equal(t, byte(42), statements[0].Opcodes[3].Operands[0])
}

func TestLoadProgramRejectsOutOfRangeOperand(t *testing.T) {
	path := writeTemp(t, `[{"label": 0, "opcodes": [{"tag": 27, "operands": [999]}]}]`)
	_, _, err := loader.LoadProgram(path)
	require.Error(t, err)
}

func TestLoadProgramMissingFile(t *testing.T) {
	_, _, err := loader.LoadProgram(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
