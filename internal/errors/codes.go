// Package errors provides the verifier's centralized error code taxonomy.
// Every failure kind in spec §7 maps to one code group here, following the
// teacher's error-code convention (internal/errors/codes.go in ailang):
// short, grep-able constants organized by phase, never free-form strings.
package errors

// Syntax errors (SYN###): malformed opcode stream.
const (
	// SYN001 indicates an opcode byte not in the alphabet of spec §6.
	SYN001 = "SYN001"

	// SYN002 indicates an operand-bearing opcode ran out of input before
	// its operand byte(s).
	SYN002 = "SYN002"
)

// Kind errors (KND###): a compile-time stack slot has the wrong kind.
const (
	// KND001 indicates an opcode expected Region but found Type or Capability.
	KND001 = "KND001"

	// KND002 indicates an opcode expected Type but found Region or Capability.
	// print and halt also report it when the run-time stack's top is not i32.
	KND002 = "KND002"

	// KND003 indicates an opcode expected Capability but found Region or Type.
	KND003 = "KND003"
)

// Arity errors (ART###): an empty stack, or an index out of range.
const (
	// ART001 indicates the compile-time stack was empty where an operand was required.
	ART001 = "ART001"

	// ART002 indicates the run-time stack was empty where an operand was required.
	ART002 = "ART002"

	// ART003 indicates get/ct_get's index argument exceeded the stack depth.
	ART003 = "ART003"

	// ART004 indicates init/proj's field index exceeded the tuple's arity.
	ART004 = "ART004"
)

// Equality errors (EQL###): a value type failed alpha-equivalence against
// the type the opcode expected.
const (
	// EQL001 indicates init saw a value not alpha-equivalent to the declared field type.
	EQL001 = "EQL001"

	// EQL002 indicates call saw run-time argument types not alpha-equivalent to the callee's signature.
	EQL002 = "EQL002"

	// EQL003 indicates pack's witness value was not alpha-equivalent to the existential's instantiated body.
	EQL003 = "EQL003"
)

// Initialization errors (INI###).
const (
	// INI001 indicates proj read a field that has not been initialized.
	INI001 = "INI001"

	// INI002 indicates init wrote a field that is already initialized ("double init").
	INI002 = "INI002"
)

// Region/Capability errors (RGN###).
const (
	// RGN001 indicates access to a region not owned in the active capability set.
	RGN001 = "RGN001"

	// RGN002 indicates free-region on a non-unique region.
	RGN002 = "RGN002"

	// RGN003 indicates a unique region argument would be captured by a polymorphic value.
	RGN003 = "RGN003"

	// RGN004 indicates call's required capability set is not a subset of the active set.
	RGN004 = "RGN004"

	// RGN005 indicates access through a region whose handle has already been freed.
	RGN005 = "RGN005"
)

// Shape errors (SHP###): the wrong type constructor reached an opcode.
const (
	// SHP001 indicates a non-tuple value reached init, proj, or malloc.
	SHP001 = "SHP001"

	// SHP002 indicates a non-function value reached call.
	SHP002 = "SHP002"

	// SHP003 indicates a non-existential value reached unpack or pack.
	SHP003 = "SHP003"

	// SHP004 indicates a non-handle value reached an opcode requiring a region handle.
	SHP004 = "SHP004"
)

// Quantifier balance errors (QNT###).
const (
	// QNT001 indicates the quantification stack was non-empty at function end.
	QNT001 = "QNT001"

	// QNT002 indicates emos/END closed a binder other than the innermost open one.
	QNT002 = "QNT002"
)

// Program-level errors (PRG###).
const (
	// PRG001 indicates the entry function has a non-empty argument list or
	// requires a capability on a region other than Heap.
	PRG001 = "PRG001"

	// PRG002 indicates a function's run-time stack was non-empty at its end
	// (this calculus has no explicit return type: every function ends by
	// halting or by a terminal call, both of which leave Σ empty).
	PRG002 = "PRG002"

	// PRG003 indicates the active capability set at function end does not
	// match the one the signature declares — the function's own Func(C,...)
	// serves as both call-time precondition and end-of-body postcondition,
	// so any region opened mid-body must be freed again before the end.
	PRG003 = "PRG003"
)
