package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyErrorAtFillsPosition(t *testing.T) {
	base := New(INI002, "field 0 already initialized")
	positioned := base.At(42, 7, "init")

	assert.Equal(t, int32(42), positioned.Label)
	assert.Equal(t, 7, positioned.Offset)
	assert.Equal(t, "init", positioned.Opcode)
	assert.Equal(t, INI002, positioned.Code)
	// At must not mutate the original.
	assert.Equal(t, int32(0), base.Label)
}

func TestWithIndexAndTypesChain(t *testing.T) {
	err := New(EQL001, "mismatch").WithIndex(2).WithTypes("i32", "handle(rgn)")
	assert.Equal(t, 2, err.Index)
	assert.Equal(t, []string{"i32", "handle(rgn)"}, err.Types)
}

func TestPrettyIncludesCode(t *testing.T) {
	err := New(SHP002, "call on non-function").At(3, 5, "call")
	s := Pretty(err)
	assert.Contains(t, s, "SHP002")
	assert.Contains(t, s, "call")
}
