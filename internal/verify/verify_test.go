package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/ident"
	"github.com/sunholo/savervm/internal/opcode"
	"github.com/sunholo/savervm/internal/sig"
	"github.com/sunholo/savervm/internal/verify"
)

func src(tag opcode.Tag, operands ...byte) opcode.Source {
	return opcode.Source{Tag: tag, Operands: operands}
}

func offsetOf(opcodes []opcode.Source) int {
	total := 0
	for _, o := range opcodes {
		total += 1 + len(o.Operands)
	}
	return total
}

// synthAndVerify mirrors internal/program's per-function driving loop at a
// scale suitable for a single-function test: synthesize the signature, then
// verify the body that's left over, against a label table containing only
// this function (sufficient whenever the body makes no global-func calls).
func synthAndVerify(t *testing.T, pool *ctypes.Pool, stmt opcode.Statement, isEntry bool) (verify.Result, error) {
	t.Helper()
	result, err := sig.Synthesize(pool, stmt)
	require.NoError(t, err)

	sigs := map[int32]ctypes.Ref{stmt.Label: result.Signature}
	fresh := ident.Resume(stmt.Label, result.FreshAt)
	startOffset := offsetOf(stmt.Opcodes) - offsetOf(result.Body)
	// strict: true — these tests check the generalized (Open Question #7)
	// Σ-emptiness reading, which every body here already satisfies.
	return verify.VerifyBody(pool, fresh, sigs, stmt.Label, isEntry, true, result.Body, startOffset)
}

func TestIdentityI32Succeeds(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 0,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),
			src(opcode.Lit, 42),
			src(opcode.Halt),
		},
	}

	result, err := synthAndVerify(t, pool, stmt, true)
	require.NoError(t, err)
	require.Len(t, result.Opcodes, 2)
	assert.Equal(t, opcode.Lit, result.Opcodes[0].Tag)
	assert.Equal(t, int32(42), result.Opcodes[0].Literal)
	assert.Equal(t, opcode.Halt, result.Opcodes[1].Tag)
}

func TestHandleOnTypeIsKindError(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 1,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),
			src(opcode.I32),
			src(opcode.Handle),
			src(opcode.Halt),
		},
	}

	_, err := synthAndVerify(t, pool, stmt, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KND")
}

func TestDoubleInitFails(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 2,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),

			src(opcode.NewRegion),
			src(opcode.Get, 0),
			src(opcode.I32),
			src(opcode.I32),
			src(opcode.Tuple, 2),
			src(opcode.Malloc),
			src(opcode.Lit, 1),
			src(opcode.Init, 0),
			src(opcode.Lit, 2),
			src(opcode.Init, 0), // double init of field 0
		},
	}

	_, err := synthAndVerify(t, pool, stmt, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INI002")
}

func TestPairInNewRegionRoundTrips(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 3,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),

			src(opcode.NewRegion),
			src(opcode.Get, 0),
			src(opcode.I32),
			src(opcode.I32),
			src(opcode.Tuple, 2),
			src(opcode.Malloc),
			src(opcode.Lit, 1),
			src(opcode.Init, 0),
			src(opcode.Lit, 2),
			src(opcode.Init, 1),
			src(opcode.Proj, 0),
			src(opcode.Print),
			src(opcode.FreeRegion),
			src(opcode.Lit, 99),
			src(opcode.Halt),
		},
	}

	result, err := synthAndVerify(t, pool, stmt, false)
	require.NoError(t, err)

	var proj *opcode.Elaborated
	for i := range result.Opcodes {
		if result.Opcodes[i].Tag == opcode.Proj {
			proj = &result.Opcodes[i]
		}
	}
	require.NotNil(t, proj)
	assert.Equal(t, 0, proj.Offset)
	assert.Equal(t, 1, proj.Size)
	assert.Equal(t, 2, proj.TotalSize)
}

func TestNonEntryNonStrictAllowsNonEmptyStackAtEnd(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 5,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),
			src(opcode.Lit, 7), // left on Σ, no halt
		},
	}

	result, err := sig.Synthesize(pool, stmt)
	require.NoError(t, err)
	sigs := map[int32]ctypes.Ref{stmt.Label: result.Signature}
	fresh := ident.Resume(stmt.Label, result.FreshAt)
	startOffset := offsetOf(stmt.Opcodes) - offsetOf(result.Body)

	_, err = verify.VerifyBody(pool, fresh, sigs, stmt.Label, false, false, result.Body, startOffset)
	require.NoError(t, err)

	_, err = verify.VerifyBody(pool, fresh, sigs, stmt.Label, false, true, result.Body, startOffset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG002")
}

func TestEntryAlwaysRequiresEmptyStackRegardlessOfStrict(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 6,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),
			src(opcode.Lit, 7), // left on Σ, no halt
		},
	}

	result, err := sig.Synthesize(pool, stmt)
	require.NoError(t, err)
	sigs := map[int32]ctypes.Ref{stmt.Label: result.Signature}
	fresh := ident.Resume(stmt.Label, result.FreshAt)
	startOffset := offsetOf(stmt.Opcodes) - offsetOf(result.Body)

	_, err = verify.VerifyBody(pool, fresh, sigs, stmt.Label, true, false, result.Body, startOffset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRG002")
}

func TestMallocWithoutHandleAllocatesStackLocal(t *testing.T) {
	pool := ctypes.NewPool()
	stmt := opcode.Statement{
		Label: 4,
		Opcodes: []opcode.Source{
			src(opcode.Heap),
			src(opcode.Own),
			src(opcode.Func, 0),

			src(opcode.I32),
			src(opcode.I32),
			src(opcode.Tuple, 2),
			src(opcode.Malloc),
			src(opcode.Lit, 7),
			src(opcode.Init, 0),
			src(opcode.Lit, 8),
			src(opcode.Init, 1),
			src(opcode.Proj, 1),
			src(opcode.Halt),
		},
	}

	result, err := synthAndVerify(t, pool, stmt, false)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Opcodes), 1)
	assert.Equal(t, opcode.Alloca, result.Opcodes[0].Tag)
}
