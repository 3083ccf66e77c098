package program_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/opcode"
	"github.com/sunholo/savervm/internal/program"
)

func src(tag opcode.Tag, operands ...byte) opcode.Source {
	return opcode.Source{Tag: tag, Operands: operands}
}

func TestTwoFunctionProgramCallsForwardDeclared(t *testing.T) {
	pool := ctypes.NewPool()
	statements := []opcode.Statement{
		{
			Label: 0, // entry
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),

				src(opcode.GlobalFunc, 1),
				src(opcode.Call),
			},
		},
		{
			Label: 1,
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),

				src(opcode.Lit, 5),
				src(opcode.Halt),
			},
		},
	}

	results, err := program.Verify(pool, statements, program.Options{Strict: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(0), results[0].Label)
	assert.Equal(t, int32(1), results[1].Label)

	var sawCall bool
	for _, op := range results[0].Opcodes {
		if op.Tag == opcode.Call {
			sawCall = true
		}
	}
	assert.True(t, sawCall)
}

func TestEntryWithArgumentsFailsPRG001(t *testing.T) {
	pool := ctypes.NewPool()
	statements := []opcode.Statement{
		{
			Label: 0,
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.I32),
				src(opcode.Func, 1),
				src(opcode.Halt),
			},
		},
	}

	_, err := program.Verify(pool, statements, program.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG001")
}

func TestEmptyProgramFailsPRG001(t *testing.T) {
	pool := ctypes.NewPool()
	_, err := program.Verify(pool, nil, program.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG001")
}

func TestUnknownEntryLabelFailsPRG001(t *testing.T) {
	pool := ctypes.NewPool()
	statements := []opcode.Statement{
		{
			Label: 0,
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),
				src(opcode.Lit, 1),
				src(opcode.Halt),
			},
		},
	}

	bogus := int32(99)
	_, err := program.Verify(pool, statements, program.Options{EntryLabel: &bogus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG001")
}

func TestEntryLabelOverrideSelectsNonFirstFunction(t *testing.T) {
	pool := ctypes.NewPool()
	statements := []opcode.Statement{
		{
			Label: 0,
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),
				src(opcode.Lit, 1),
				src(opcode.Halt),
			},
		},
		{
			Label: 1, // the real entry, by override
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),
				src(opcode.Lit, 2),
				src(opcode.Halt),
			},
		},
	}

	entry := int32(1)
	results, err := program.Verify(pool, statements, program.Options{EntryLabel: &entry})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestStrictGatesNonEntryEpilogue(t *testing.T) {
	// The non-entry function (label 1) leaves a run-time value live at the
	// end of its body (no halt) — relaxed under Strict: false, rejected
	// (PRG002) under Strict: true.
	statements := []opcode.Statement{
		{
			Label: 0, // entry
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),
				src(opcode.Lit, 1),
				src(opcode.Halt),
			},
		},
		{
			Label: 1,
			Opcodes: []opcode.Source{
				src(opcode.Heap),
				src(opcode.Own),
				src(opcode.Func, 0),
				src(opcode.Lit, 7), // left on Σ, no halt
			},
		},
	}

	relaxedPool := ctypes.NewPool()
	_, err := program.Verify(relaxedPool, statements, program.Options{Strict: false})
	require.NoError(t, err)

	strictPool := ctypes.NewPool()
	_, err = program.Verify(strictPool, statements, program.Options{Strict: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG002")
}
