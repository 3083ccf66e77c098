package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sunholo/savervm/internal/ctypes"
)

func TestSizeOfDirectTupleIsSumOfFields(t *testing.T) {
	pool := ctypes.NewPool()
	b := ctypes.NewBuilder(pool)

	i32 := b.I32()
	tup := b.Tuple([]ctypes.Ref{i32, i32, i32}, ctypes.Heap)

	assert.Equal(t, 3, Size(pool, tup))
}

func TestSizeOfMutableIsOneWordRegardlessOfInner(t *testing.T) {
	pool := ctypes.NewPool()
	b := ctypes.NewBuilder(pool)

	i32 := b.I32()
	tup := b.Tuple([]ctypes.Ref{i32, i32, i32}, ctypes.Heap)
	boxed := b.Mutable(tup)

	assert.Equal(t, WordSize, Size(pool, boxed))
}

func TestOffsetOfIsPrefixSum(t *testing.T) {
	pool := ctypes.NewPool()
	b := ctypes.NewBuilder(pool)

	i32 := b.I32()
	tup := b.Tuple([]ctypes.Ref{i32, i32}, ctypes.Heap)
	fields := []ctypes.Ref{i32, tup, i32}

	assert.Equal(t, 0, OffsetOf(pool, fields, 0))
	assert.Equal(t, 1, OffsetOf(pool, fields, 1))
	assert.Equal(t, 3, OffsetOf(pool, fields, 2))
	assert.Equal(t, 4, TotalSize(pool, fields))
}
