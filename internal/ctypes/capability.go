package ctypes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sunholo/savervm/internal/ident"
)

// CapKind distinguishes the four capability shapes described in spec §3.
type CapKind int

const (
	CapOwned CapKind = iota
	CapNotOwned
	CapVar
	CapVarBounded
)

// Capability is the static proof that a region is live, and whether the
// holder may mutate through it (Owned) or only observe it (NotOwned). A
// capability variable stands for a capability supplied by a caller; a
// bounded capability variable additionally carries the capability it is
// known to be at most as strong as. Ownable consults that bound; call-site
// subset checks compare a bounded variable structurally (Id and bound).
//
// Example:
//
//	owned := Capability{Kind: CapOwned, Region: r}
//	bounded := Capability{Kind: CapVarBounded, VarID: kappa, Bound: &owned}
type Capability struct {
	Kind   CapKind
	Region Region      // valid for CapOwned, CapNotOwned
	VarID  ident.ID    // valid for CapVar, CapVarBounded
	Bound  *Capability // valid for CapVarBounded
}

// Owned builds an Owned(r) capability.
func Owned(r Region) Capability { return Capability{Kind: CapOwned, Region: r} }

// NotOwned builds a NotOwned(r) capability.
func NotOwned(r Region) Capability { return Capability{Kind: CapNotOwned, Region: r} }

// Var builds a plain capability variable.
func Var(id ident.ID) Capability { return Capability{Kind: CapVar, VarID: id} }

// VarBounded builds a bounded capability variable κ ≤ C.
func VarBounded(id ident.ID, bound Capability) Capability {
	return Capability{Kind: CapVarBounded, VarID: id, Bound: &bound}
}

// Equal is structural equality, per spec §4.2 ("capability sets and regions:
// structural equality with Heap = Heap and variables compared by Id").
func (c Capability) Equal(other Capability) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case CapOwned, CapNotOwned:
		return c.Region.Equal(other.Region)
	case CapVar:
		return c.VarID.Equal(other.VarID)
	case CapVarBounded:
		return c.VarID.Equal(other.VarID) && c.Bound.Equal(*other.Bound)
	default:
		return false
	}
}

// Ownable reports whether c asserts ownership (as opposed to read-only
// access) of some region: true for Owned and for a bounded variable whose
// bound is itself ownable.
func (c Capability) Ownable() bool {
	switch c.Kind {
	case CapOwned:
		return true
	case CapVarBounded:
		return c.Bound.Ownable()
	default:
		return false
	}
}

// RegionOf returns the region a concrete (non-variable) capability mentions.
func (c Capability) RegionOf() (Region, bool) {
	switch c.Kind {
	case CapOwned, CapNotOwned:
		return c.Region, true
	default:
		return Region{}, false
	}
}

func (c Capability) String() string {
	switch c.Kind {
	case CapOwned:
		return fmt.Sprintf("own(%s)", c.Region)
	case CapNotOwned:
		return fmt.Sprintf("read(%s)", c.Region)
	case CapVar:
		return fmt.Sprintf("cap%s", c.VarID)
	case CapVarBounded:
		return fmt.Sprintf("cap%s<=%s", c.VarID, c.Bound)
	default:
		return "?cap"
	}
}

// CapSet is an interned, ordered list of capabilities — the capability set
// in force at a program point (spec §3, "Capabilities"). Sets produced by
// `both` are the concatenation of their operands, per the Open Question
// resolution in SPEC_FULL.md §4 ("`both`'s capability alphabet"); they are
// not re-sorted or deduplicated at construction time.
type CapSet struct {
	Caps []Capability
}

// Contains reports whether any capability in cs is alpha-equivalent (here,
// structurally equal) to want.
func (cs CapSet) Contains(want Capability) bool {
	for _, c := range cs.Caps {
		if c.Equal(want) {
			return true
		}
	}
	return false
}

// Subset reports whether every capability in required has an equivalent
// occurrence in cs — the check `call` performs against the active set
// (spec §4.6, "require C_req ⊆ C").
func (cs CapSet) Subset(required CapSet) bool {
	for _, req := range required.Caps {
		if !cs.Contains(req) {
			return false
		}
	}
	return true
}

// Concat returns the concatenation of two capability sets (the semantics of
// `both`, per SPEC_FULL.md §4).
func Concat(a, b CapSet) CapSet {
	out := make([]Capability, 0, len(a.Caps)+len(b.Caps))
	out = append(out, a.Caps...)
	out = append(out, b.Caps...)
	return CapSet{Caps: out}
}

// WithoutRegion returns cs with every capability mentioning region r
// removed — used when `free-region` retires a region from the active set.
func (cs CapSet) WithoutRegion(r Region) CapSet {
	out := make([]Capability, 0, len(cs.Caps))
	for _, c := range cs.Caps {
		if reg, ok := c.RegionOf(); ok && reg.Equal(r) {
			continue
		}
		out = append(out, c)
	}
	return CapSet{Caps: out}
}

// WithCapability returns cs with c appended.
func (cs CapSet) WithCapability(c Capability) CapSet {
	out := make([]Capability, 0, len(cs.Caps)+1)
	out = append(out, cs.Caps...)
	out = append(out, c)
	return CapSet{Caps: out}
}

func (cs CapSet) String() string {
	parts := make([]string, len(cs.Caps))
	for i, c := range cs.Caps {
		parts[i] = c.String()
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
