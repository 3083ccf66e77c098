// Package layout is the layout oracle (spec §4.3): it maps types to their
// machine-word footprint and computes the byte (word) offsets the
// elaborator bakes into Get/Init/Proj/Malloc/Alloca. Offsets emitted here
// are never recomputed by the execution engine that consumes them.
package layout

import "github.com/sunholo/savervm/internal/ctypes"

// WordSize is the slot width every non-tuple type in this language occupies
// at runtime: each such constructor is either a scalar or a pointer-like
// value, so it is exactly one word (spec §4.3).
const WordSize = 1

// Size returns the machine-word footprint of the type at ref. Per spec
// §4.3: I32 is one word; Handle is one word; Mutable is one word; an Array
// header is one word; a type variable reports the size carried by its
// binder (this language has no sub-word types, so that size is always
// WordSize); Func is one word (a code pointer).
//
// Tuple values are the sole exception: their footprint is the sum of their
// fields' sizes. This applies to every Tuple type whatever region it is
// homed in; a tuple allocated in a region behind a handle is not reduced to
// a one-word pointer.
func Size(pool *ctypes.Pool, ref ctypes.Ref) int {
	t := pool.Get(ref)
	switch t.Tag {
	case ctypes.TTuple:
		total := 0
		for _, f := range t.Fields {
			total += Size(pool, f.Type)
		}
		return total
	default:
		return WordSize
	}
}

// OffsetOf returns Σ_{j<i} size(componentTypes[j]) — the byte offset of the
// i-th field within a flat layout of componentTypes (spec §4.3,
// "offset_of"). Panics if i is out of range; callers must bounds-check
// first (that check is itself a verification failure, not a layout one).
func OffsetOf(pool *ctypes.Pool, componentTypes []ctypes.Ref, i int) int {
	offset := 0
	for j := 0; j < i; j++ {
		offset += Size(pool, componentTypes[j])
	}
	return offset
}

// TotalSize returns the sum of sizes of componentTypes — the `total` operand
// baked into elaborated Init/Proj opcodes (spec §6).
func TotalSize(pool *ctypes.Pool, componentTypes []ctypes.Ref) int {
	total := 0
	for _, t := range componentTypes {
		total += Size(pool, t)
	}
	return total
}
