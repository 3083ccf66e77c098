// Package ctypes implements the constructor universe of the verifier:
// regions, capabilities, and types, the pools that intern them, and the
// substitution/alpha-equivalence operations defined over them (spec §3, §4.1,
// §4.2). Every compile-time stack slot carries one of these as its payload.
package ctypes

// Kind classifies a compile-time stack slot. Opcodes that consume a slot
// state the kind they expect; a mismatch is a KindError (spec §4.4, §7).
type Kind int

const (
	KindRegion Kind = iota
	KindType
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindRegion:
		return "region"
	case KindType:
		return "type"
	case KindCapability:
		return "capability"
	default:
		return "unknown-kind"
	}
}
